// Package builtin registers the stock task types with the default task
// registry:
//
//   - DownloadTask (source): reads a local file or fetches an HTTP URL
//   - CSVQueryTask (transform): "select distinct" over CSV input
//   - SSHUploadTask (sink): writes datasets to a remote host over SSH
//   - ObjectUploadTask (sink): writes datasets to blob storage
//
// Importing the package for side effects is enough to make the tags
// resolvable. Configure wires the HTTP client and object storage the types
// use at run time.
package builtin
