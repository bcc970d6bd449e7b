// Package cluster groups embedding vectors into topical clusters and
// supports cheap incremental assignment of new vectors.
//
// The Engine moves from Unfitted to Fitted through FitPredict, which
// validates the input matrix, optionally fits a PCA projection to a
// reduced space, and applies either k-means (every point labeled) or
// DBSCAN (label -1 reserved for noise). Quality metrics, cluster
// membership and the incremental-assignment operations are only available
// on a fitted engine.
//
// Two incremental paths exist for daily updates that cannot afford a full
// re-cluster:
//
//   - AssignToExistingClusters compares each new vector against every
//     previously-seen vector by angular distance and copies the nearest
//     label. Cost grows with the historical corpus.
//   - TransformAndAssign projects new vectors through the already-fitted
//     projection model and picks the nearest centroid in the reduced
//     space. Cost grows only with the cluster count, which is the point:
//     the corpus can keep growing without re-clustering from scratch.
package cluster
