// Package asset models the unit of work flowing through podflow: a directory
// holding one image artifact plus metadata sidecar files (title.txt,
// description.txt, tags.txt). The directory name doubles as the stable asset
// identifier so crash recovery is a pure filesystem scan.
package asset
