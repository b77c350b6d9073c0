// Package mongo connects to MongoDB with mongo-driver/v2 for the document
// credential store. Configuration comes from MONGODB_* variables; New retries
// until a ping succeeds, and Healthcheck exposes the same ping as a probe.
package mongo
