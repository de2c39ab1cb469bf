// Package network inspects local interfaces for building share URLs.
package network

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

var ErrNoInterface = errors.New("no active network interface")

type InterfaceInfo struct {
	Name string
	IP   net.IP
}

func (i InterfaceInfo) String() string {
	return fmt.Sprintf("%s\t(%s)", i.IP, i.Name)
}

// ActiveInterfaces lists unicast addresses of interfaces that are up and not
// loopback. IPv6 addresses are included on request, link-local ones never.
func ActiveInterfaces(includeIPv6 bool) ([]InterfaceInfo, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}

	var result []InterfaceInfo
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP
			if v4 := ip.To4(); v4 != nil {
				result = append(result, InterfaceInfo{Name: iface.Name, IP: v4})
				continue
			}
			if includeIPv6 && !ip.IsLinkLocalUnicast() {
				result = append(result, InterfaceInfo{Name: iface.Name, IP: ip})
			}
		}
	}
	return result, nil
}

// SelectInterface returns the interface named preferred, or the first one.
func SelectInterface(ifaces []InterfaceInfo, preferred string) (InterfaceInfo, error) {
	if len(ifaces) == 0 {
		return InterfaceInfo{}, ErrNoInterface
	}
	for _, iface := range ifaces {
		if iface.Name == preferred {
			return iface, nil
		}
	}
	return ifaces[0], nil
}

// LocalHostName is the lower-cased machine name, without any domain part.
func LocalHostName() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "localhost"
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// BaseURL is the https origin clients should use to reach this machine.
func BaseURL(host string, port int) string {
	return "https://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// IsPortInUse reports whether port cannot be bound on the loopback address.
func IsPortInUse(port int) (bool, error) {
	if port < 1 || port > 65535 {
		return false, fmt.Errorf("port %d out of range 1-65535", port)
	}
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		// in use or access denied
		return true, nil
	}
	_ = ln.Close()
	return false, nil
}
