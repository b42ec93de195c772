// Package embedder generates dense vector embeddings for statute chunks
// and user queries, and exposes an optional cross-encoder reranker.
//
// Embedding is asymmetric: chunks embed with TaskDocument, queries with
// TaskQuery. Providers that support a task parameter natively (Jina v3)
// pass it through; others express the document side with an instruction
// prefix. The task participates in the cache key so the two encodings
// of the same text never collide.
//
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = emb.Close() }()
//
//	resp, err := emb.EmbedBatch(ctx, embedder.BatchRequest{
//	    Texts: chunkTexts,
//	    Task:  embedder.TaskDocument,
//	})
//
// The local provider derives vectors from content hashes: meaningless
// for relevance but fully deterministic, which keeps pipeline and index
// tests hermetic.
package embedder
