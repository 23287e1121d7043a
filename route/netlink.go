/*
 * ILA control plane. Copyright (C) 2021-present David Coles
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package route

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"github.com/ilanet/ila"
	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netlink/nl"
)

// Route "protocol" reserved for routes this daemon owns, so a restart can
// find and purge only its own state (see Netlink.Start).
const rtProtoILA = ila.RTPROTILA

// lwtunnel encapsulation type for ILA, and the nested attributes carried
// under RTA_ENCAP when RTA_ENCAP_TYPE == lwtunnelEncapILA.
const (
	lwtunnelEncapILA = 13

	ilaAttrUnspec   = 0
	ilaAttrLocator  = 1
	ilaAttrCsumMode = 2
	ilaAttrIdentType = 3
	ilaAttrHookType = 4
)

// encap implements netlink.Encap, carrying the four ILA route attributes
// nested under RTA_ENCAP.
type encap struct {
	Locator   ila.Locator
	CsumMode  ila.ChecksumMode
	IdentType ila.IdentType
	HookType  ila.HookType
}

func (e *encap) Type() int { return lwtunnelEncapILA }

func (e *encap) Encode() ([]byte, error) {
	var buf []byte

	locBytes := e.Locator.Bytes()
	loc := nl.NewRtAttr(ilaAttrLocator, locBytes[:])
	csum := nl.NewRtAttr(ilaAttrCsumMode, []byte{byte(e.CsumMode)})
	ident := nl.NewRtAttr(ilaAttrIdentType, []byte{byte(e.IdentType)})
	hook := nl.NewRtAttr(ilaAttrHookType, []byte{byte(e.HookType)})

	for _, attr := range []*nl.RtAttr{loc, csum, ident, hook} {
		buf = append(buf, attr.Serialize()...)
	}

	return buf, nil
}

func (e *encap) Decode(buf []byte) error {
	attrs, err := nl.ParseRouteAttr(buf)
	if err != nil {
		return err
	}

	for _, a := range attrs {
		switch a.Attr.Type {
		case ilaAttrLocator:
			if len(a.Value) >= 8 {
				e.Locator = ila.LocatorFromBytes(a.Value)
			}
		case ilaAttrCsumMode:
			if len(a.Value) >= 1 {
				e.CsumMode = ila.ChecksumMode(a.Value[0])
			}
		case ilaAttrIdentType:
			if len(a.Value) >= 1 {
				e.IdentType = ila.IdentType(a.Value[0])
			}
		case ilaAttrHookType:
			if len(a.Value) >= 1 {
				e.HookType = ila.HookType(a.Value[0])
			}
		}
	}
	return nil
}

func (e *encap) String() string {
	return fmt.Sprintf("ila locator %s csum-mode %s ident-type %s hook-type %s",
		e.Locator, e.CsumMode, e.IdentType, e.HookType)
}

func (e *encap) Equal(x netlink.Encap) bool {
	o, ok := x.(*encap)
	if !ok {
		return false
	}
	return *e == *o
}

// Netlink installs ILA host routes via rtnetlink, using vishvananda/netlink
// for the route add/delete/list calls and a custom lwtunnel encap for the
// ILA-specific attributes.
type Netlink struct {
	cfg Config
	ifi *net.Interface
}

func NewNetlink() *Netlink {
	return &Netlink{}
}

func (n *Netlink) Configure(cfg Config) error {
	ifi, err := net.InterfaceByName(cfg.Dev)
	if err != nil {
		return fmt.Errorf("route/netlink: interface %q: %w", cfg.Dev, err)
	}
	n.cfg = cfg
	n.ifi = ifi
	return nil
}

// Start dumps the IPv6 route table, deletes every route tagged with
// rtProtoILA, and leaves the table ready for fresh installs.
func (n *Netlink) Start() error {
	routes, err := netlink.RouteListFiltered(netlink.FAMILY_V6, &netlink.Route{
		Protocol: rtProtoILA,
	}, netlink.RT_FILTER_PROTOCOL)
	if err != nil {
		return fmt.Errorf("route/netlink: listing existing routes: %w", err)
	}

	for _, r := range routes {
		if err := netlink.RouteDel(&r); err != nil {
			return fmt.Errorf("route/netlink: purging stale route %s: %w", r.Dst, err)
		}
	}

	return nil
}

func (n *Netlink) SetRoute(key ila.MapKey, value ila.MapValue) error {
	if value.Loc == n.cfg.LocalLocator {
		err := n.DelRoute(key)
		if err != nil && err != ErrMissing {
			return err
		}
		return nil
	}

	ifindex := value.IfIndex
	if ifindex == 0 {
		ifindex = n.ifi.Index
	}

	dst := ila.Address(key).Netip()

	r := &netlink.Route{
		Dst:       netlinkHostPrefix(dst),
		Gw:        n.cfg.Via.AsSlice(),
		LinkIndex: ifindex,
		Protocol:  rtProtoILA,
		Encap: &encap{
			Locator:   value.Loc,
			CsumMode:  value.CsumMode,
			IdentType: value.IdentType,
			HookType:  value.HookType,
		},
	}

	if err := netlink.RouteReplace(r); err != nil {
		return fmt.Errorf("route/netlink: installing route for %s: %w", key, err)
	}

	return nil
}

func (n *Netlink) DelRoute(key ila.MapKey) error {
	dst := ila.Address(key).Netip()

	r := &netlink.Route{
		Dst:      netlinkHostPrefix(dst),
		Protocol: rtProtoILA,
	}

	err := netlink.RouteDel(r)
	if err != nil {
		if isNotExist(err) {
			return ErrMissing
		}
		return fmt.Errorf("route/netlink: deleting route for %s: %w", key, err)
	}
	return nil
}

func netlinkHostPrefix(a netip.Addr) *net.IPNet {
	return &net.IPNet{
		IP:   net.IP(a.AsSlice()),
		Mask: net.CIDRMask(128, 128),
	}
}

func isNotExist(err error) bool {
	return errors.Is(err, syscall.ESRCH) || errors.Is(err, syscall.ENOENT)
}
