// Package storage provides the object store backing asset bytes.
//
// Two backends implement the Backend interface: Local keeps objects under a
// root directory on the daemon's filesystem and signs download/upload URLs
// served by the daemon itself, while S3 speaks the S3 REST API directly with
// SigV4 request signing and presigned URLs, compatible with AWS, Cloudflare
// R2, and MinIO.
//
// Keys are slash-separated relative paths such as
// "assets/3f2a.../original.mp3". Both backends treat Delete of a missing key
// as success and report missing objects from Get and Stat with ErrNotExist.
package storage
