package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/pipeline"
)

/**
 * @brief Holds a Vulkan pipeline and its layout.
 */
type VulkanPipeline struct {
	/** @brief The internal pipeline handle. */
	Handle vk.Pipeline
	/** @brief The pipeline layout. */
	PipelineLayout vk.PipelineLayout
	Fingerprint    metadata.Fingerprint
}

type VulkanPipelineConfig struct {
	/** @brief The renderpass to associate with the pipeline. */
	Renderpass vk.RenderPass
	/** @brief The stride of one interleaved vertex. */
	Stride uint32
	/** @brief An array of attributes. */
	Attributes []vk.VertexInputAttributeDescription
	/** @brief An array of descriptor set layouts. */
	DescriptorSetLayouts []vk.DescriptorSetLayout
	/** @brief An array of stages. */
	Stages []vk.PipelineShaderStageCreateInfo
	/** @brief Fixed function state of the pass. */
	Modes metadata.RenderModes
}

var attributeFormats = map[uint32]vk.Format{
	1: vk.FormatR32Sfloat,
	2: vk.FormatR32g32Sfloat,
	3: vk.FormatR32g32b32Sfloat,
	4: vk.FormatR32g32b32a32Sfloat,
}

// vertexAttributes maps the decoded layout to input locations in layout order.
func vertexAttributes(attrs []pipeline.VertexAttribute) ([]vk.VertexInputAttributeDescription, error) {
	out := make([]vk.VertexInputAttributeDescription, 0, len(attrs))
	for i, a := range attrs {
		format, ok := attributeFormats[a.Components]
		if !ok {
			return nil, fmt.Errorf("attribute '%s' has unsupported component count %d", a.Name, a.Components)
		}
		out = append(out, vk.VertexInputAttributeDescription{
			Location: uint32(i),
			Binding:  0,
			Format:   format,
			Offset:   a.Offset,
		})
	}
	return out, nil
}

func cullMode(mode metadata.FaceCullMode) vk.CullModeFlags {
	switch mode {
	case metadata.FaceCullModeNone:
		return vk.CullModeFlags(vk.CullModeNone)
	case metadata.FaceCullModeFront:
		return vk.CullModeFlags(vk.CullModeFrontBit)
	case metadata.FaceCullModeFrontAndBack:
		return vk.CullModeFlags(vk.CullModeFrontAndBack)
	}
	return vk.CullModeFlags(vk.CullModeBackBit)
}

func topology(mode metadata.DrawMode) vk.PrimitiveTopology {
	switch mode {
	case metadata.DrawModePoints:
		return vk.PrimitiveTopologyPointList
	case metadata.DrawModeLines:
		return vk.PrimitiveTopologyLineList
	case metadata.DrawModeLineStrip:
		return vk.PrimitiveTopologyLineStrip
	case metadata.DrawModeTriangleStrip:
		return vk.PrimitiveTopologyTriangleStrip
	case metadata.DrawModeTriangleFan:
		return vk.PrimitiveTopologyTriangleFan
	}
	return vk.PrimitiveTopologyTriangleList
}

var compareOps = map[metadata.CompareOp]vk.CompareOp{
	metadata.CompareOpNever:          vk.CompareOpNever,
	metadata.CompareOpLess:           vk.CompareOpLess,
	metadata.CompareOpEqual:          vk.CompareOpEqual,
	metadata.CompareOpLessOrEqual:    vk.CompareOpLessOrEqual,
	metadata.CompareOpGreater:        vk.CompareOpGreater,
	metadata.CompareOpNotEqual:       vk.CompareOpNotEqual,
	metadata.CompareOpGreaterOrEqual: vk.CompareOpGreaterOrEqual,
	metadata.CompareOpAlways:         vk.CompareOpAlways,
}

var stencilOps = map[metadata.StencilOp]vk.StencilOp{
	metadata.StencilOpKeep:              vk.StencilOpKeep,
	metadata.StencilOpZero:              vk.StencilOpZero,
	metadata.StencilOpReplace:           vk.StencilOpReplace,
	metadata.StencilOpIncrementAndClamp: vk.StencilOpIncrementAndClamp,
	metadata.StencilOpDecrementAndClamp: vk.StencilOpDecrementAndClamp,
	metadata.StencilOpInvert:            vk.StencilOpInvert,
	metadata.StencilOpIncrementAndWrap:  vk.StencilOpIncrementAndWrap,
	metadata.StencilOpDecrementAndWrap:  vk.StencilOpDecrementAndWrap,
}

func stencilFace(s metadata.StencilState) vk.StencilOpState {
	return vk.StencilOpState{
		FailOp:      stencilOps[s.Fail],
		PassOp:      stencilOps[s.Pass],
		DepthFailOp: stencilOps[s.DepthFail],
		CompareOp:   compareOps[s.Func],
		CompareMask: s.FuncMask,
		WriteMask:   s.WriteMask,
		Reference:   uint32(s.Reference),
	}
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}

func NewGraphicsPipeline(context *VulkanContext, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	outPipeline := &VulkanPipeline{}
	modes := config.Modes

	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	// Rasterizer
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		FrontFace:               vk.FrontFaceCounterClockwise,
		CullMode:                cullMode(modes.CullFace),
		DepthBiasEnable:         vkBool(modes.Offset),
		DepthBiasConstantFactor: modes.OffsetUnits,
		DepthBiasSlopeFactor:    modes.OffsetFactor,
	}

	// Multisampling.
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      modes.SampleCoverage,
		AlphaToCoverageEnable: vkBool(modes.AlphaToCoverage),
		AlphaToOneEnable:      vk.False,
	}

	// Depth and stencil testing.
	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(modes.DepthTest),
		DepthWriteEnable:      vkBool(modes.DepthMask),
		DepthCompareOp:        vk.CompareOpLessOrEqual,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vkBool(modes.Stencil.Enabled),
	}
	if modes.Stencil.Enabled {
		depthStencil.Front = stencilFace(modes.Stencil)
		depthStencil.Back = stencilFace(modes.Stencil)
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(modes.AlphaBlend),
		SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
		DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		ColorBlendOp:        vk.BlendOpAdd,
		SrcAlphaBlendFactor: vk.BlendFactorSrcAlpha,
		DstAlphaBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
		AlphaBlendOp:        vk.BlendOpAdd,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	// Dynamic state
	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	// Vertex input
	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0, // Binding index
		Stride:    config.Stride,
		InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
	}

	// Attributes
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(config.Attributes)),
		PVertexAttributeDescriptions:    config.Attributes,
	}

	// Input assembly
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               topology(modes.DrawMode),
		PrimitiveRestartEnable: vk.False,
	}

	// Pipeline layout
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(config.DescriptorSetLayouts)),
		PSetLayouts:    config.DescriptorSetLayouts,
	}

	// Create the pipeline layout.
	var pPipelineLayout vk.PipelineLayout
	if err := context.locks.SafeCall(core.PipelineCreation, func() error {
		result := vk.CreatePipelineLayout(
			context.Device,
			&pipelineLayoutCreateInfo,
			context.Allocator,
			&pPipelineLayout)
		if !VulkanResultIsSuccess(result) {
			return fmt.Errorf("vkCreatePipelineLayout failed with %s", VulkanResultString(result, true))
		}
		outPipeline.PipelineLayout = pPipelineLayout
		return nil
	}); err != nil {
		return nil, err
	}

	// Pipeline create
	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(config.Stages)),
		PStages:             config.Stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		PTessellationState:  nil,
		Layout:              outPipeline.PipelineLayout,
		RenderPass:          config.Renderpass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pPipelines := make([]vk.Pipeline, 1)
	if err := context.locks.SafeCall(core.PipelineCreation, func() error {
		result := vk.CreateGraphicsPipelines(
			context.Device,
			vk.NullPipelineCache,
			1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo},
			context.Allocator,
			pPipelines)
		if result != vk.Success {
			return fmt.Errorf("vkCreateGraphicsPipelines failed with %s", VulkanResultString(result, true))
		}
		return nil
	}); err != nil {
		outPipeline.Destroy(context)
		return nil, err
	}
	outPipeline.Handle = pPipelines[0]

	core.LogDebug("Graphics pipeline created!")
	return outPipeline, nil
}

func (pipeline *VulkanPipeline) Destroy(context *VulkanContext) {
	_ = context.locks.SafeCall(core.PipelineCreation, func() error {
		// Destroy pipeline
		if pipeline.Handle != vk.NullPipeline {
			vk.DestroyPipeline(context.Device, pipeline.Handle, context.Allocator)
			pipeline.Handle = vk.NullPipeline
		}
		// Destroy layout
		if pipeline.PipelineLayout != vk.NullPipelineLayout {
			vk.DestroyPipelineLayout(context.Device, pipeline.PipelineLayout, context.Allocator)
			pipeline.PipelineLayout = vk.NullPipelineLayout
		}
		return nil
	})
}

func (pipeline *VulkanPipeline) Bind(commandBuffer *VulkanCommandBuffer, bindPoint vk.PipelineBindPoint) {
	vk.CmdBindPipeline(commandBuffer.Handle, bindPoint, pipeline.Handle)
}
