package route

// #region fallback-chain

// FallbackChain returns a copy of the ordered provider chain for mode.
// Unknown modes get the default chain.
func (t *Table) FallbackChain(mode string) []string {
	chain, ok := t.chains[Normalize(mode)]
	if !ok {
		chain = t.chains[ModeDefault]
	}
	return append([]string(nil), chain...)
}

// #endregion

// #region next-fallback

// NextFallback returns the provider that follows current in mode's chain.
// A provider that is last, or absent from the chain, yields ("", false):
// a caller already served by an unlisted provider is not pushed into an
// unrelated chain.
func (t *Table) NextFallback(mode, current string) (string, bool) {
	chain := t.FallbackChain(mode)
	for i, p := range chain {
		if p != current {
			continue
		}
		if i+1 < len(chain) {
			return chain[i+1], true
		}
		return "", false
	}
	return "", false
}

// #endregion
