/*
Package workers sizes the worker pools of the ingestion pipeline.

Inside a container runtime.NumCPU reports the host's CPUs, while GOMAXPROCS
follows the cgroup CPU limit. Pool sizes are therefore derived from
GOMAXPROCS and a per-workload multiplier:

	ingest := workers.ForMixed(8)  // hashing + header decode + insert
	enrich := workers.ForCPU(4)    // resize, encode, analyse
	sweep  := workers.ForIO(16)    // stat + catalog lookups

Each pool can be pinned by the operator through its own variable:

	enrich := workers.FromEnv("ENRICH_WORKERS", workers.ForCPU(4))
*/
package workers
