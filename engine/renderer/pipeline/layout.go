package pipeline

import (
	"strings"
)

var componentsByType = map[string]uint32{
	"float":  1,
	"float2": 2,
	"float3": 3,
	"float4": 4,
}

// attributesOf decodes a vertex descriptor ("float3 a_position float2 a_texcoord")
// into attributes with byte offsets.
func attributesOf(vertexFormat string) []VertexAttribute {
	fields := strings.Fields(vertexFormat)
	attrs := make([]VertexAttribute, 0, len(fields)/2)
	offset := uint32(0)
	for i := 0; i+1 < len(fields); i += 2 {
		n, ok := componentsByType[fields[i]]
		if !ok {
			continue
		}
		attrs = append(attrs, VertexAttribute{
			Name:       fields[i+1],
			Components: n,
			Offset:     offset,
		})
		offset += n * 4
	}
	return attrs
}
