// Package config describes a scan session: the input and its format, field
// and attribute selection, batching, regions, the sink, and the ambient
// logging, metrics, tracing and storage settings.
//
// A ScanConfig starts from Default and is layered by LoadWithViper:
//
//	defaults < YAML file < GENOBATCH_* environment < explicit flags
//
// YAML files may reference environment variables with ${VAR_NAME}; they are
// substituted before parsing, so secrets such as a postgres DSN can stay out
// of the file:
//
//	input: s3://${BUCKET}/gencode.v44.gtf.gz
//	format: gtf
//	attributes:
//	  gene_id: String
//	  tag: Array
//	output:
//	  format: postgres
//	  dsn: ${PG_DSN}
//	  table: features
//	  create_table: true
//
// Validate reports problems with the session description as config errors.
// Malformed attribute tags and regions surface with the invalid_input type
// of the packages that parse them.
package config
