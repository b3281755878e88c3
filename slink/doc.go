/*
Package slink replicates MongoDB collections into a search index.

This package includes the following main components:

  - Orchestrator: Runs the bootstrap dump and the change feed for one
    collection, and drives the failure/reset state machine between them.

  - Manager: Owns all collection orchestrators and the process-wide
    pause gate for bootstrap dumps.

  - Gate: Suspends and resumes all in-flight bootstrap dumps together.

  - BulkBatch: Accumulates paired operation descriptors and documents
    for bulk indexing.
*/
package slink
