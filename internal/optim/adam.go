package optim

import (
	"fmt"
	"math"

	"github.com/ghego/cs224n-win18-squad/internal/nn"
	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// Adam implements Adam (Kingma & Ba, 2014), the default optimizer for
// span model training.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * g
//	v_t = beta2 * v_{t-1} + (1-beta2) * g²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
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

// AdamConfig holds Adam hyperparameters. Zero values get the usual
// defaults: lr 0.001, betas (0.9, 0.999), eps 1e-8.
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig, backend B) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
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

	return &Adam[B]{
		params:  params,
		lr:      config.LR,
		beta1:   config.Betas[0],
		beta2:   config.Betas[1],
		eps:     config.Eps,
		m:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		v:       make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B]),
		backend: backend,
	}
}

// Step applies one bias-corrected Adam update to every parameter with a
// gradient in the map.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	biasCorrection1 := float32(1 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := gradientFor(param, grads)
		if grad == nil {
			continue
		}

		m, ok := a.m[param]
		if !ok {
			m = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = tensor.Zeros[float32](param.Tensor().Shape(), a.backend)
			a.v[param] = v
		}

		gradData := grad.AsFloat32()
		mData := m.Data()
		vData := v.Data()
		paramData := param.Tensor().Data()

		for i := range paramData {
			g := gradData[i]
			mData[i] = a.beta1*mData[i] + (1-a.beta1)*g
			vData[i] = a.beta2*vData[i] + (1-a.beta2)*g*g

			mHat := mData[i] / biasCorrection1
			vHat := vData[i] / biasCorrection2
			paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 { return a.lr }

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) { a.lr = lr }

// Timestep returns the number of steps taken, counting loaded state.
func (a *Adam[B]) Timestep() int { return a.t }

// StateDict exports both moment buffers per parameter index plus the
// step count, so bias correction resumes correctly after a restart.
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)

	step := tensor.Full[float32](tensor.Shape{1}, float32(a.t), a.backend)
	state["step"] = step.Raw()

	for i, param := range a.params {
		if m, ok := a.m[param]; ok {
			state[fmt.Sprintf("m.%d", i)] = m.Raw()
		}
		if v, ok := a.v[param]; ok {
			state[fmt.Sprintf("v.%d", i)] = v.Raw()
		}
	}
	return state
}

// LoadStateDict restores moments and the step count. Parameters without
// saved moments start fresh on their next step.
func (a *Adam[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if step, ok := state["step"]; ok {
		a.t = int(step.AsFloat32()[0])
	}

	a.m = make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])
	a.v = make(map[*nn.Parameter[B]]*tensor.Tensor[float32, B])

	for i, param := range a.params {
		want := param.Tensor().Shape()
		if raw, ok := state[fmt.Sprintf("m.%d", i)]; ok {
			if !raw.Shape().Equal(want) {
				return fmt.Errorf("adam moment m.%d shape mismatch: have %v, want %v", i, raw.Shape(), want)
			}
			a.m[param] = copyBuffer(raw, a.backend)
		}
		if raw, ok := state[fmt.Sprintf("v.%d", i)]; ok {
			if !raw.Shape().Equal(want) {
				return fmt.Errorf("adam moment v.%d shape mismatch: have %v, want %v", i, raw.Shape(), want)
			}
			a.v[param] = copyBuffer(raw, a.backend)
		}
	}
	return nil
}

// copyBuffer clones a checkpoint tensor so optimizer steps never write
// through into the loaded state dict.
func copyBuffer[B tensor.Backend](raw *tensor.RawTensor, backend B) *tensor.Tensor[float32, B] {
	out := tensor.Zeros[float32](raw.Shape(), backend)
	copy(out.Data(), raw.AsFloat32())
	return out
}
