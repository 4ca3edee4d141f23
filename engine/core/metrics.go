package core

const AVG_COUNT uint8 = 30

// FrameCounters are reset at the start of every frame.
type FrameCounters struct {
	MergedDrawCalls  uint32
	SingleDrawCalls  uint32
	SkippedDrawables uint32
	PipelineFailures uint32
}

func (c FrameCounters) DrawCalls() uint32 {
	return c.MergedDrawCalls + c.SingleDrawCalls
}

type FrameMetrics struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64

	Current FrameCounters
	Last    FrameCounters
}

func NewFrameMetrics() *FrameMetrics {
	return &FrameMetrics{
		MStimes: [AVG_COUNT]float64{0},
	}
}

// BeginFrame rolls the per-frame counters.
func (m *FrameMetrics) BeginFrame() {
	m.Last = m.Current
	m.Current = FrameCounters{}
}

func (m *FrameMetrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	m.MStimes[m.FrameAVGCounter] = frameMS
	if m.FrameAVGCounter == AVG_COUNT-1 {
		m.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			m.MSavg += m.MStimes[i]
		}
		m.MSavg /= float64(AVG_COUNT)
	}
	m.FrameAVGCounter++
	m.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	m.AccumulatedFrameMS += frameMS
	if m.AccumulatedFrameMS > 1000 {
		m.FPS = float64(m.Frames)
		m.AccumulatedFrameMS -= 1000
		m.Frames = 0
	}

	// Count all Frames.
	m.Frames++
}

func (m *FrameMetrics) FPSAndFrameTime() (float64, float64) {
	return m.FPS, m.MSavg
}
