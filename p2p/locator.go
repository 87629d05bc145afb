package p2p

import "context"

// BuildLocator constructs the exponential-backoff set of ancestor hashes
// used to find a common ancestor with a peer (spec §4.8, testable property
// 10): starting at height H, each subsequent entry steps back by an
// increasing power of two, stopping before MAX_LOCATORS-1 entries are
// collected, and the locator always ends with height 0.
func BuildLocator(ctx context.Context, chain BlockChain, tipHeight uint64) (BlockLocator, error) {
	var loc BlockLocator

	height := tipHeight
	step := uint64(1)
	for len(loc.Hashes) < MaxLocators-1 {
		h, ok, err := chain.HeaderByHeight(ctx, height)
		if err != nil {
			return BlockLocator{}, err
		}
		if ok {
			loc.Hashes = append(loc.Hashes, h.Hash)
		}
		if height == 0 {
			return loc, nil
		}
		if height < step {
			height = 0
		} else {
			height -= step
		}
		step *= 2
	}

	if h, ok, err := chain.HeaderByHeight(ctx, 0); err == nil && ok {
		if len(loc.Hashes) == 0 || loc.Hashes[len(loc.Hashes)-1] != h.Hash {
			loc.Hashes = append(loc.Hashes, h.Hash)
		}
	} else if err != nil {
		return BlockLocator{}, err
	}
	return loc, nil
}
