// Package config loads pool definitions from YAML files.
//
// A file names every pool a process serves together with its policy, and
// carries the logging, metrics and tracing sections the CLI wires up:
//
//	version: "1"
//	logging:
//	  level: info
//	  encoding: json
//	metrics:
//	  enabled: true
//	  address: ":9090"
//	pools:
//	  - name: buffers
//	    key: 1
//	    init_capacity: 16
//	    max_capacity: 256
//	    borrow: lifo
//	    overflow: request
//	    warm_up: 16
//	  - name: codecs
//	    key: 2
//	    max_capacity: ${CODEC_POOL_MAX:-32}
//
// # Environment Variable Substitution
//
// ${VAR} is replaced by the value of VAR before parsing and ${VAR:-fallback}
// uses fallback when VAR is unset or empty.
//
// # Defaults
//
// Missing pool fields take the pool package defaults: init capacity 10,
// max capacity 1000, FIFO borrowing and REUSE overflow. Load validates the
// file; Save writes it back without substitution.
package config
