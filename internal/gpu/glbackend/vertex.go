package glbackend

import (
	"fmt"

	"deferred-shadows/internal/gpu"

	"github.com/go-gl/gl/v4.1-core/gl"
)

type vertexArray struct {
	vbo, ebo uint32
}

// NewVertexArray uploads interleaved vertices and an index list. Attribute i
// of layout is bound to location i.
func (d *Device) NewVertexArray(layout gpu.VertexLayout, vertices []float32, indices []uint32) (gpu.VertexArray, error) {
	if len(vertices) == 0 || len(indices) == 0 {
		return 0, fmt.Errorf("vertex array: empty geometry: %w", gpu.ErrAllocation)
	}
	var vao, vbo, ebo uint32
	gl.GenVertexArrays(1, &vao)
	gl.GenBuffers(1, &vbo)
	gl.GenBuffers(1, &ebo)

	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, ebo)
	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(indices)*4, gl.Ptr(indices), gl.STATIC_DRAW)

	stride := int32(layout.Stride() * 4)
	offset := 0
	for i, n := range layout {
		gl.EnableVertexAttribArray(uint32(i))
		gl.VertexAttribPointerWithOffset(uint32(i), int32(n), gl.FLOAT, false, stride, uintptr(offset*4))
		offset += n
	}
	gl.BindVertexArray(0)

	if err := d.Err(); err != nil {
		gl.DeleteVertexArrays(1, &vao)
		gl.DeleteBuffers(1, &vbo)
		gl.DeleteBuffers(1, &ebo)
		return 0, fmt.Errorf("vertex array: %w: %v", gpu.ErrAllocation, err)
	}
	d.arrays[gpu.VertexArray(vao)] = vertexArray{vbo: vbo, ebo: ebo}
	return gpu.VertexArray(vao), nil
}

func (d *Device) DeleteVertexArray(va gpu.VertexArray) {
	if va == 0 {
		return
	}
	if b, ok := d.arrays[va]; ok {
		gl.DeleteBuffers(1, &b.vbo)
		gl.DeleteBuffers(1, &b.ebo)
		delete(d.arrays, va)
	}
	v := uint32(va)
	gl.DeleteVertexArrays(1, &v)
}

func (d *Device) DrawIndexed(va gpu.VertexArray, count int) {
	gl.BindVertexArray(uint32(va))
	gl.DrawElements(gl.TRIANGLES, int32(count), gl.UNSIGNED_INT, nil)
	gl.BindVertexArray(0)
}
