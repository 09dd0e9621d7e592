package optim

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/chewxy/math32"
)

// State dict keys. Moments are stored as "<param>.m" and "<param>.v".
const (
	stepKey = "adam.step"
	lrKey   = "adam.lr"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)   // Parameter update
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type Adam[B tensor.Backend] struct {
	params  []*nn.Parameter[B]
	lr      float32
	beta1   float32
	beta2   float32
	eps     float32
	t       int
	m       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	v       map[*nn.Parameter[B]]*tensor.Tensor[float32, B]
	backend B
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float32    // Learning rate (default: 1e-4)
	Betas [2]float32 // Running average coefficients (default: [0.9, 0.999])
	Eps   float32    // Numerical stability term (default: 1e-8)
}

// DefaultLR is the learning rate used when AdamConfig.LR is zero.
const DefaultLR = 1e-4

// NewAdam creates a new Adam optimizer. Zero config fields take their
// defaults. Moments start at zero for every parameter.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = DefaultLR
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}

	a := &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B], len(params)),
		v:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B], len(params)),
		backend: backend,
	}
	for _, p := range params {
		a.m[p] = tensor.Zeros[float32](p.Tensor().Shape(), backend)
		a.v[p] = tensor.Zeros[float32](p.Tensor().Shape(), backend)
	}
	return a
}

// Step performs a single Adam update on every parameter.
//
// Every parameter must have a gradient of matching shape in grads; otherwise
// Step returns ErrMissingGradient or ErrGradientShape and leaves parameters,
// moments and the timestep untouched.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) error {
	gs, err := gatherGradients(a.params, grads)
	if err != nil {
		return err
	}

	a.t++
	bc1 := 1 - math32.Pow(a.beta1, float32(a.t))
	bc2 := 1 - math32.Pow(a.beta2, float32(a.t))

	for i, p := range a.params {
		g := gs[i].AsFloat32()
		m := a.m[p].Data()
		v := a.v[p].Data()
		w := p.Tensor().Data()
		for j := range w {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*g[j]*g[j]
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			w[j] -= a.lr * mHat / (math32.Sqrt(vHat) + a.eps)
		}
	}
	return nil
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the number of completed steps.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// StateDict returns copies of the moment estimates, the timestep and the
// learning rate, keyed for serialization.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor, 2*len(a.params)+2)
	for _, p := range a.params {
		state[p.Name()+".m"] = a.m[p].Raw().Clone()
		state[p.Name()+".v"] = a.v[p].Raw().Clone()
	}

	step := tensor.MustNewRaw(tensor.Shape{}, tensor.Int32, a.backend.Device())
	step.AsInt32()[0] = int32(a.t)
	state[stepKey] = step

	lr := tensor.MustNewRaw(tensor.Shape{}, tensor.Float32, a.backend.Device())
	lr.AsFloat32()[0] = a.lr
	state[lrKey] = lr

	return state
}

// LoadStateDict restores state produced by StateDict. All entries are checked
// before anything is applied, so a failed load leaves the optimizer unchanged.
func (a *Adam[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	step, ok := state[stepKey]
	if !ok || step.DType() != tensor.Int32 || step.NumElements() != 1 {
		return fmt.Errorf("%w: missing or malformed %s", ErrInvalidState, stepKey)
	}
	lr, ok := state[lrKey]
	if !ok || lr.DType() != tensor.Float32 || lr.NumElements() != 1 {
		return fmt.Errorf("%w: missing or malformed %s", ErrInvalidState, lrKey)
	}
	for _, p := range a.params {
		for _, key := range []string{p.Name() + ".m", p.Name() + ".v"} {
			t, ok := state[key]
			if !ok {
				return fmt.Errorf("%w: missing %s", ErrInvalidState, key)
			}
			if t.DType() != tensor.Float32 || !t.Shape().Equal(p.Raw().Shape()) {
				return fmt.Errorf("%w: %s has shape %v, want %v", ErrInvalidState, key, t.Shape(), p.Raw().Shape())
			}
		}
	}

	for _, p := range a.params {
		// Shapes were checked above.
		_ = a.m[p].Raw().CopyFrom(state[p.Name()+".m"])
		_ = a.v[p].Raw().CopyFrom(state[p.Name()+".v"])
	}
	a.t = int(step.AsInt32()[0])
	a.lr = lr.AsFloat32()[0]
	return nil
}
