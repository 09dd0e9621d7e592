// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package convnet is the public API of the convolutional MNIST classifier.
//
// # Overview
//
// The network maps flattened 28x28 grayscale images to ten digit classes:
//   - two convolution blocks (5x5 filters, ReLU, 2x2 max pooling) with 32 and 64 channels
//   - a 1028-unit dense layer with ReLU and dropout
//   - a 10-unit output layer producing logits, with softmax for predictions
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/digitnet/convnet"
//	)
//
//	func main() {
//	    trainer, err := convnet.NewCPUTrainer(convnet.DefaultConfig(), convnet.TrainerOptions{})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    for step := range 1000 {
//	        res, err := trainer.Step(nextBatch(50), 0.5)
//	        ...
//	    }
//	    if err := trainer.Save("save/mnistNN.born", 0, false); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    net, err := convnet.NewCPUNetwork(convnet.DefaultConfig())
//	    if _, err := net.Restore("save/mnistNN.born"); err != nil {
//	        log.Fatal(err)
//	    }
//	    metrics, err := net.Evaluate(testBatch)
//	}
//
// # Checkpoints
//
// Checkpoints use the .born container: a fixed header, a JSON tensor index
// and 64-byte aligned float32 data protected by a SHA-256 checksum. Restore
// requires exactly the network's parameter names and shapes.
package convnet
