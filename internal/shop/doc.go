// Package shop defines the adapter contract the upload engine publishes
// assets through, plus template selection shared by shop implementations.
package shop
