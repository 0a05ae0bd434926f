// Package trainer provides the training orchestration shared by the train commands.
// A step function samples collocation points and updates the network, an evaluate
// function measures the test residual and checkpoints the network when it improves, and
// a loop function drives both until the iteration budget runs out or the context ends.
package trainer
