// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend the digit classifier runs on.
//
// # Overview
//
// The backend implements:
//   - NHWC convolution through im2col and gonum's float32 GEMM
//   - Max pooling with SAME or VALID padding
//   - Fused softmax cross-entropy
//   - Broadcasting element-wise arithmetic
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/digitnet/backend/cpu"
//	    "github.com/born-ml/digitnet/convnet"
//	)
//
//	func main() {
//	    net, err := convnet.NewNetwork(convnet.DefaultConfig(), cpu.New())
//	    ...
//	}
//
// # Thread Safety
//
// The backend holds no mutable state; kernels may be called from several
// goroutines at once.
package cpu
