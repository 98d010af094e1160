package dashboard

// ChartPoints 置信度折线图的固定采样点数
const ChartPoints = 20

// ChartSeries 固定长度的 FIFO 序列：新值从尾部进入，最旧值从头部移出。
// 用数组保存，长度恒为 ChartPoints。
type ChartSeries struct {
	samples [ChartPoints]float64
}

// NewChartSeries 初始化为全 0
func NewChartSeries() *ChartSeries {
	return &ChartSeries{}
}

// Push 移出最旧采样并追加 v（截断到 [0,100]）
func (c *ChartSeries) Push(v float64) {
	copy(c.samples[:], c.samples[1:])
	c.samples[ChartPoints-1] = clampPercent(v)
}

// Samples 返回采样副本（最旧在前）
func (c *ChartSeries) Samples() []float64 {
	out := make([]float64, ChartPoints)
	copy(out, c.samples[:])
	return out
}

// Latest 最新采样
func (c *ChartSeries) Latest() float64 {
	return c.samples[ChartPoints-1]
}

func (c *ChartSeries) Len() int {
	return len(c.samples)
}

func clampPercent(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
