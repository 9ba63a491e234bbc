package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/texture-renderer/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quadSequence = []string{
	"begin",
	"beginRenderPass",
	"setViewport",
	"setScissor",
	"bindDescriptorSets",
	"bindPipeline",
	"bindVertexBuffers",
	"bindIndexBuffer",
	"drawIndexed 6",
	"endRenderPass",
	"end",
}

func fakeSets(n int) []vk.DescriptorSet {
	sets := make([]vk.DescriptorSet, n)
	for i := range sets {
		sets[i] = vk.DescriptorSet(fakeHandle())
	}
	return sets
}

func TestRecordCommandSequences(t *testing.T) {
	device := newFakeDevice()
	ctx := newFakeContext(device, 2, 3)
	layout, err := BuildDescriptorLayout(device)
	require.NoError(t, err)
	scene, release := newTestScene(t, device, 2, quadMeshData("quad"))
	defer release.unwind()
	sets := fakeSets(2)

	sequences, err := RecordCommandSequences(device, ctx.RenderTarget(), layout, sets, scene, DefaultClearValues([4]float32{0, 0, 0.2, 1}))
	require.NoError(t, err)

	assert.Equal(t, 6, sequences.Count())
	assert.Equal(t, uint32(3), sequences.ImageCount)
	assert.Equal(t, ctx.Generation, sequences.Generation)
	for slot := uint32(0); slot < 2; slot++ {
		for image := uint32(0); image < 3; image++ {
			cb, err := sequences.At(slot, image)
			require.NoError(t, err)
			assert.Equal(t, ctx.CommandBuffers[slot*3+image], cb)
			assert.Equal(t, quadSequence, device.commands[cb])
			assert.Equal(t, []vk.DescriptorSet{sets[slot]}, device.boundSets[cb], "slot %d binds its own set", slot)
		}
	}
}

func TestCommandSequencesAtOutOfRange(t *testing.T) {
	sequences := &CommandSequences{
		Buffers:        make([]vk.CommandBuffer, 4),
		ImageCount:     2,
		FramesInFlight: 2,
	}
	_, err := sequences.At(2, 0)
	assert.ErrorIs(t, err, core.ErrNeedsRebuild)
	_, err = sequences.At(0, 2)
	assert.ErrorIs(t, err, core.ErrNeedsRebuild)
	_, err = sequences.At(1, 1)
	assert.NoError(t, err)
}

func TestCommandSequencesStale(t *testing.T) {
	sequences := &CommandSequences{Generation: 3, Extent: vk.Extent2D{Width: 800, Height: 600}}

	assert.False(t, sequences.Stale(3, vk.Extent2D{Width: 800, Height: 600}))
	assert.True(t, sequences.Stale(4, vk.Extent2D{Width: 800, Height: 600}))
	assert.True(t, sequences.Stale(3, vk.Extent2D{Width: 1024, Height: 600}))
}

func TestRecordCommandSequencesValidatesTarget(t *testing.T) {
	device := newFakeDevice()
	layout, err := BuildDescriptorLayout(device)
	require.NoError(t, err)
	scene, release := newTestScene(t, device, 2, quadMeshData("quad"))
	defer release.unwind()

	ctx := newFakeContext(device, 2, 3)
	_, err = RecordCommandSequences(device, ctx.RenderTarget(), layout, fakeSets(1), scene, ClearValues{})
	assert.ErrorIs(t, err, core.ErrInvalidBinding)

	target := ctx.RenderTarget()
	target.CommandBuffers = target.CommandBuffers[:5]
	_, err = RecordCommandSequences(device, target, layout, fakeSets(2), scene, ClearValues{})
	assert.ErrorIs(t, err, core.ErrInvalidBinding)

	target = ctx.RenderTarget()
	target.Framebuffers = nil
	_, err = RecordCommandSequences(device, target, layout, fakeSets(2), scene, ClearValues{})
	assert.ErrorIs(t, err, core.ErrInvalidBinding)
}

func TestRecordCommandSequencesBeginFailure(t *testing.T) {
	device := newFakeDevice()
	layout, err := BuildDescriptorLayout(device)
	require.NoError(t, err)
	scene, release := newTestScene(t, device, 2, quadMeshData("quad"))
	defer release.unwind()

	device.failOn("BeginCommandBuffer", 3, vk.ErrorOutOfHostMemory)
	_, err = RecordCommandSequences(device, newFakeContext(device, 2, 2).RenderTarget(), layout, fakeSets(2), scene, ClearValues{})
	assert.ErrorIs(t, err, core.ErrSetupFailed)
}

func TestSwapchainContextValidate(t *testing.T) {
	device := newFakeDevice()
	assert.NoError(t, newFakeContext(device, 2, 3).Validate())

	var nilCtx *SwapchainContext
	assert.ErrorIs(t, nilCtx.Validate(), core.ErrInvalidBinding)

	ctx := newFakeContext(device, 2, 3)
	ctx.InFlight = ctx.InFlight[:1]
	assert.ErrorIs(t, ctx.Validate(), core.ErrInvalidBinding)

	ctx = newFakeContext(device, 2, 3)
	ctx.CommandBuffers = ctx.CommandBuffers[:3]
	assert.ErrorIs(t, ctx.Validate(), core.ErrInvalidBinding)

	ctx = newFakeContext(device, 0, 3)
	assert.ErrorIs(t, ctx.Validate(), core.ErrInvalidBinding)
}
