package p2p

import "net"

// DNS seed hostnames, distinct per network (spec §4.11 supplemented detail;
// ported from original_source's hard-coded seed lists).
var mainnetDNSSeeds = []string{
	"mainnet-seed.grin.icu",
	"mainnet.seed.713.mw",
	"mainnet.seed.grin.lesceller.com",
}

var floonetDNSSeeds = []string{
	"floonet-seed.grin.icu",
	"floonet.seed.713.mw",
}

func dnsSeedsFor(n Network) []string {
	if n == Floonet {
		return floonetDNSSeeds
	}
	return mainnetDNSSeeds
}

// resolveDNSSeeds resolves every configured seed hostname to addresses on
// DefaultPort, skipping names that fail to resolve rather than aborting the
// whole round.
func resolveDNSSeeds(n Network) []net.TCPAddr {
	var out []net.TCPAddr
	for _, host := range dnsSeedsFor(n) {
		ips, err := net.LookupIP(host)
		if err != nil {
			log.Debug("dns seed lookup failed", "host", host, "err", err)
			continue
		}
		for _, ip := range ips {
			out = append(out, net.TCPAddr{IP: ip, Port: DefaultPort})
		}
	}
	return out
}
