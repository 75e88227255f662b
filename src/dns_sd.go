package afsk

/*------------------------------------------------------------------
 *
 * Purpose:   	Announce the KISS over TCP service using DNS-SD
 *
 * Description:
 *
 *     Most people have typed in enough IP addresses and ports by now, and
 *     would rather just select an available TNC that is automatically
 *     discovered on the local network.  Even more so on a mobile device
 *     such an Android or iOS phone or tablet.
 *
 *     This uses the pure-Go github.com/brutella/dnssd package for
 *     cross-platform mDNS/DNS-SD service announcement without requiring
 *     any system daemon or C library dependencies.
 */

import (
	"context"
	"os"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

const DNS_SD_SERVICE = "_kiss-tnc._tcp"

// dnsSDDefaultServiceName is "Samoyed AFSK on <hostname>", or just
// "Samoyed AFSK" if hostname cannot be obtained.
func dnsSDDefaultServiceName() string {
	var hostname, hostnameErr = os.Hostname()
	if hostnameErr != nil || hostname == "" {
		return "Samoyed AFSK"
	}

	// on some systems, an FQDN is returned; remove domain part
	hostname, _, _ = strings.Cut(hostname, ".")

	return "Samoyed AFSK on " + hostname
}

// DNSSDService builds the service record for a KISS TCP port.
func DNSSDService(name string, port int) (dnssd.Service, error) {
	if name == "" {
		name = dnsSDDefaultServiceName()
	}

	return dnssd.NewService(dnssd.Config{ //nolint:exhaustruct
		Name: name,
		Type: DNS_SD_SERVICE,
		Port: port,
	})
}

/*------------------------------------------------------------------
 *
 * Name:        AnnounceKISS
 *
 * Purpose:     Announce the KISS TCP port until ctx is done.
 *
 * Description:	Failure to announce is not fatal.  The port still
 *		works, it just has to be typed in.
 *
 *----------------------------------------------------------------*/

func AnnounceKISS(ctx context.Context, name string, port int, logger *log.Logger) {
	logger = logger.WithPrefix("dns-sd")

	var sv, svErr = DNSSDService(name, port)
	if svErr != nil {
		logger.Error("Failed to create service", "err", svErr)
		return
	}

	var rp, rpErr = dnssd.NewResponder()
	if rpErr != nil {
		logger.Error("Failed to create responder", "err", rpErr)
		return
	}

	if _, addErr := rp.Add(sv); addErr != nil {
		logger.Error("Failed to add service", "err", addErr)
		return
	}

	logger.Info("Announcing KISS TCP", "port", port, "name", sv.Name)

	go func() {
		var respondErr = rp.Respond(ctx)
		if respondErr != nil && ctx.Err() == nil {
			logger.Error("Responder error", "err", respondErr)
		}
	}()
}
