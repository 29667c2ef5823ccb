package domain

// Window is a fixed lookback duration over which volume is summed.
type Window struct {
	Label   string
	Seconds int64
}

// Windows is the fixed window set, ordered from shortest to longest.
var Windows = []Window{
	{Label: "1m", Seconds: 60},
	{Label: "5m", Seconds: 5 * 60},
	{Label: "15m", Seconds: 15 * 60},
	{Label: "1h", Seconds: 60 * 60},
}

// MaxWindowSeconds returns the longest configured window.
func MaxWindowSeconds() int64 {
	var max int64
	for _, w := range Windows {
		if w.Seconds > max {
			max = w.Seconds
		}
	}
	return max
}

// WindowVolume is the token and USD volume of one window.
type WindowVolume struct {
	Token float64 `json:"token"`
	USD   float64 `json:"usd"`
}

// Volumes maps window label to volume.
type Volumes map[string]WindowVolume

// NewVolumes returns zeroed volumes for every window.
func NewVolumes() Volumes {
	v := make(Volumes, len(Windows))
	for _, w := range Windows {
		v[w.Label] = WindowVolume{}
	}
	return v
}

// TokenOnly flattens the volumes to label -> token amount.
func (v Volumes) TokenOnly() map[string]float64 {
	out := make(map[string]float64, len(v))
	for label, wv := range v {
		out[label] = wv.Token
	}
	return out
}

// WindowSum is the raw per-window aggregate read from durable storage.
type WindowSum struct {
	Label        string
	Token        float64 // sum of |base_delta|
	StableUSD    float64 // sum of |base_delta| * |price| over stable-quoted trades
	StableTrades int64   // number of stable-quoted trades contributing to StableUSD
}
