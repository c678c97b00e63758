// Package segment provides a small pure Go segmentation stack that satisfies
// the training collaborator interfaces: a per-pixel softmax model, the
// composite Tversky plus weighted cross-entropy loss, a synthetic dataset
// with seeded augmentation, and a held-out evaluator.
//
// The model is deliberately shallow. It exists so the trainer can run end
// to end on any machine and so the orchestration can be exercised in tests
// with real gradients.
package segment
