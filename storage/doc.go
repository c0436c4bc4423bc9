// Package storage provides object storage for raw audio segments and
// session documents. Supported backends: local filesystem and Amazon S3
// (or S3-compatible services).
//
// Backends register themselves via RegisterFactory in an init function;
// import the backend package for its side effect:
//
//	import _ "github.com/skillsenselab/workshopkit/storage/local"
package storage
