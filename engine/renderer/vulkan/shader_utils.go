package vulkan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	vk "github.com/goki/vulkan"
)

/**
 * @brief SPIR-V code of a shader program. Shaders read the transform
 * table from set 0 binding 0 and vertex inputs in layout order.
 */
type ShaderProgram struct {
	Vertex   []byte
	Fragment []byte
}

// LoadShaderProgram reads <name>.vert.spv and <name>.frag.spv from dir.
func LoadShaderProgram(dir, name string) (ShaderProgram, error) {
	var p ShaderProgram
	var err error
	if p.Vertex, err = os.ReadFile(filepath.Join(dir, name+".vert.spv")); err != nil {
		return p, fmt.Errorf("unable to read shader module: %w", err)
	}
	if p.Fragment, err = os.ReadFile(filepath.Join(dir, name+".frag.spv")); err != nil {
		return p, fmt.Errorf("unable to read shader module: %w", err)
	}
	return p, nil
}

/**
 * @brief Represents a single shader stage.
 */
type VulkanShaderStage struct {
	/** @brief The internal shader module Handle. */
	Handle vk.ShaderModule
	/** @brief The pipeline shader stage creation info. */
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

func NewShaderModule(context *VulkanContext, code []byte, shaderStageFlag vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, errors.New("SPIR-V code must be a non empty multiple of 4 bytes")
	}
	stage := &VulkanShaderStage{}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    uint32Words(code),
	}
	if res := vk.CreateShaderModule(context.Device, &createInfo, context.Allocator, &stage.Handle); res != vk.Success {
		return nil, fmt.Errorf("vkCreateShaderModule failed with %s", VulkanResultString(res, true))
	}

	// Shader stage info
	stage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  shaderStageFlag,
		Module: stage.Handle,
		PName:  VulkanSafeString("main"),
	}
	return stage, nil
}

func (s *VulkanShaderStage) Destroy(context *VulkanContext) {
	if s.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device, s.Handle, context.Allocator)
		s.Handle = vk.NullShaderModule
	}
}

// createStages builds the vertex and fragment stages of a program. The
// modules can be destroyed as soon as the pipeline exists.
func createStages(context *VulkanContext, program ShaderProgram) ([]*VulkanShaderStage, error) {
	vert, err := NewShaderModule(context, program.Vertex, vk.ShaderStageVertexBit)
	if err != nil {
		return nil, err
	}
	frag, err := NewShaderModule(context, program.Fragment, vk.ShaderStageFragmentBit)
	if err != nil {
		vert.Destroy(context)
		return nil, err
	}
	return []*VulkanShaderStage{vert, frag}, nil
}
