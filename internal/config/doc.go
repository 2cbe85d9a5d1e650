// Package config loads the engine configuration from YAML.
//
// Missing values take the defaults declared in the struct tags, and
// ${VAR} or ${VAR:-default} references are expanded from the environment
// before parsing:
//
//	engine:
//	  cancelWaitTimeout: 5s
//	  cancelPollInterval: 50ms
//	  notifyAbandonedOperations: false
//	limits:
//	  sizeLimit: 1000
//	  timeLimit: 60s
//	logging:
//	  level: ${OBACORE_LOG_LEVEL:-info}
//	  format: json
//	backend:
//	  baseDNs: ["dc=example,dc=com"]
//	  inMemory: true
//	plugins:
//	  rateLimit:
//	    enabled: true
//	    requestsPerSecond: 50
//	    burst: 100
//	workQueue:
//	  workers: 16
//	  queueSize: 1024
//
// Validate reports every problem at once as ValidationErrors.
package config
