// Package workspace owns the asset directory partitions (pending, used_<shop>,
// error_<shop>, error_generate) and the outcome router that relocates each
// finished asset atomically into its terminal partition. It also provides the
// flock-backed run lock that serializes runs against a workspace, since one
// workspace shares one exclusive browser session.
package workspace
