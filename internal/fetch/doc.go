// Package fetch acquires resources: it streams them over HTTP(S), copies
// them from local paths, and unpacks archives (zip, and tar compressed with
// gzip, xz or zstd) before taking the wanted path out of them. Google Drive
// sharing links are rewritten to their direct download form.
//
// A failed transfer never leaves a partial resource behind.
package fetch
