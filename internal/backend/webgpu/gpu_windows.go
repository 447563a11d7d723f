//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/ghego/cs224n-win18-squad/internal/tensor"
)

// gpuContext owns the WebGPU device and the shader and pipeline caches.
type gpuContext struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	mu        sync.RWMutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
}

// newGPU requests an adapter and device. A panic from a missing
// wgpu_native library is converted into an error.
func newGPU() (g *gpuContext, err error) {
	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &gpuContext{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
	}, nil
}

// matMul runs [M, K] @ [K, N] on the GPU. ok is false for inputs the
// shader does not cover, and the caller falls back to the CPU.
func (g *gpuContext) matMul(a, b *tensor.RawTensor) (*tensor.RawTensor, bool) {
	if g == nil || a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		return nil, false
	}
	if len(a.Shape()) != 2 || len(b.Shape()) != 2 || a.Shape()[1] != b.Shape()[0] {
		return nil, false
	}

	m, k, n := a.Shape()[0], a.Shape()[1], b.Shape()[1]
	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(m))
	binary.LittleEndian.PutUint32(params[4:8], uint32(k))
	binary.LittleEndian.PutUint32(params[8:12], uint32(n))

	out, err := g.dispatch("matmul", matmulShader, a, b, tensor.Shape{m, n}, params,
		uint32((n+15)/16), uint32((m+15)/16), 1)
	if err != nil {
		panic("webgpu: matmul: " + err.Error())
	}
	return out, true
}

// batchMatMul runs stacks with identical leading dimensions as one
// flattened [batch, M, K] @ [batch, K, N] dispatch.
func (g *gpuContext) batchMatMul(a, b *tensor.RawTensor) (*tensor.RawTensor, bool) {
	if g == nil || a.DType() != tensor.Float32 || b.DType() != tensor.Float32 {
		return nil, false
	}
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) < 3 || len(aShape) != len(bShape) {
		return nil, false
	}
	batch := 1
	for i := 0; i < len(aShape)-2; i++ {
		if aShape[i] != bShape[i] {
			return nil, false
		}
		batch *= aShape[i]
	}
	m, k := aShape[len(aShape)-2], aShape[len(aShape)-1]
	if bShape[len(bShape)-2] != k {
		return nil, false
	}
	n := bShape[len(bShape)-1]

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(batch))
	binary.LittleEndian.PutUint32(params[4:8], uint32(m))
	binary.LittleEndian.PutUint32(params[8:12], uint32(k))
	binary.LittleEndian.PutUint32(params[12:16], uint32(n))

	outShape := aShape.Clone()
	outShape[len(outShape)-1] = n

	out, err := g.dispatch("batch_matmul", batchMatMulShader, a, b, outShape, params,
		uint32((n+7)/8), uint32((m+7)/8), uint32(batch))
	if err != nil {
		panic("webgpu: batch matmul: " + err.Error())
	}
	return out, true
}

// dispatch uploads both operands, runs one compute pass, and reads the
// result back through a staging buffer.
func (g *gpuContext) dispatch(
	name, shaderCode string,
	a, b *tensor.RawTensor,
	outShape tensor.Shape,
	params []byte,
	wgX, wgY, wgZ uint32,
) (*tensor.RawTensor, error) {
	pipeline := g.getOrCreatePipeline(name, shaderCode)

	bufferA := g.createBuffer(a.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferA.Release()
	bufferB := g.createBuffer(b.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer bufferB.Release()

	resultSize := uint64(outShape.NumElements() * 4)
	bufferResult := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  resultSize,
	})
	defer bufferResult.Release()

	bufferParams := g.createUniformBuffer(params)
	defer bufferParams.Release()

	bindGroup := g.device.CreateBindGroupSimple(pipeline.GetBindGroupLayout(0), []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferA, 0, uint64(a.ByteSize())),
		wgpu.BufferBindingEntry(1, bufferB, 0, uint64(b.ByteSize())),
		wgpu.BufferBindingEntry(2, bufferResult, 0, resultSize),
		wgpu.BufferBindingEntry(3, bufferParams, 0, uint64(len(params))),
	})
	defer bindGroup.Release()

	encoder := g.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(wgX, wgY, wgZ)
	pass.End()
	g.queue.Submit(encoder.Finish(nil))

	data, err := g.readBuffer(bufferResult, resultSize)
	if err != nil {
		return nil, err
	}

	out, err := tensor.NewRaw(outShape, tensor.Float32, tensor.WebGPU)
	if err != nil {
		return nil, err
	}
	copy(out.Data(), data)
	return out, nil
}

func (g *gpuContext) getOrCreatePipeline(name, code string) *wgpu.ComputePipeline {
	g.mu.RLock()
	pipeline, exists := g.pipelines[name]
	g.mu.RUnlock()
	if exists {
		return pipeline
	}

	shader := g.device.CreateShaderModuleWGSL(code)
	pipeline = g.device.CreateComputePipelineSimple(nil, shader, "main")

	g.mu.Lock()
	g.shaders[name] = shader
	g.pipelines[name] = pipeline
	g.mu.Unlock()
	return pipeline
}

func (g *gpuContext) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))
	buffer := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mapped := unsafe.Slice((*byte)(buffer.GetMappedRange(0, size)), size)
	copy(mapped, data)
	buffer.Unmap()
	return buffer
}

// createUniformBuffer pads the payload to the 16-byte uniform alignment.
func (g *gpuContext) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15
	buffer := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})
	mapped := unsafe.Slice((*byte)(buffer.GetMappedRange(0, alignedSize)), alignedSize)
	copy(mapped, data)
	buffer.Unmap()
	return buffer
}

// readBuffer copies a storage buffer back to CPU memory via a staging
// buffer, since storage buffers cannot be mapped directly.
func (g *gpuContext) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging := g.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := g.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	g.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(g.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("map staging buffer: %w", err)
	}
	mapped := unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)
	result := make([]byte, size)
	copy(result, mapped)
	staging.Unmap()
	return result, nil
}
