package model

// TokenConfig identifies one instrument to watch: a token contract on a
// chain, sampled at a fixed bar size.
type TokenConfig struct {
	Name       string `json:"name"`
	Contract   string `json:"contract"`
	ChainIndex int    `json:"chain_index"`
	Bar        string `json:"bar"`
}

// Key returns the "name:bar" identity used in Redis keys and log lines.
func (t TokenConfig) Key() string {
	return t.Name + ":" + t.Bar
}
