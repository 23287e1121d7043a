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

package ila

// IdentKey is the key of the ident store: a 64-bit identifier number
// assigned by the administrative/controller process.
type IdentKey uint64

// IdentValue binds an identifier number to the endpoint's current full
// address and the locator-number it is presently reachable via.
type IdentValue struct {
	Address Address
	LocNum  uint64
}

// LocKey is a locator-number, the key of the loc store.
type LocKey uint64

// LocValue is the locator bound to a LocKey.
type LocValue Locator

// ChecksumMode selects how ILA handles transport checksums across the
// identifier/locator rewrite.
type ChecksumMode uint8

const (
	ChecksumNone ChecksumMode = iota
	ChecksumAdjustTransport
	ChecksumNeutralMap
	ChecksumNeutralMapAuto
)

func (c ChecksumMode) String() string {
	switch c {
	case ChecksumNone:
		return "NONE"
	case ChecksumAdjustTransport:
		return "ADJUST_TRANSPORT"
	case ChecksumNeutralMap:
		return "NEUTRAL_MAP"
	case ChecksumNeutralMapAuto:
		return "NEUTRAL_MAP_AUTO"
	default:
		return "UNKNOWN"
	}
}

// IdentType classifies how the low 64 bits of an address should be
// interpreted by the forwarding path.
type IdentType uint8

const (
	IdentIID IdentType = iota
	IdentLUID
	IdentVirtV4
	IdentVirtUniV6
	IdentVirtMultiV6
	IdentNonlocal
)

func (t IdentType) String() string {
	switch t {
	case IdentIID:
		return "IID"
	case IdentLUID:
		return "LUID"
	case IdentVirtV4:
		return "VIRT_V4"
	case IdentVirtUniV6:
		return "VIRT_UNI_V6"
	case IdentVirtMultiV6:
		return "VIRT_MULTI_V6"
	case IdentNonlocal:
		return "NONLOCAL"
	default:
		return "UNKNOWN"
	}
}

// HookType names the netfilter-style hook a route applies to.
type HookType uint8

const (
	HookRouteOutput HookType = iota
	HookRouteInput
)

func (h HookType) String() string {
	switch h {
	case HookRouteOutput:
		return "ROUTE_OUTPUT"
	case HookRouteInput:
		return "ROUTE_INPUT"
	default:
		return "UNKNOWN"
	}
}

// MapKey is a full 128-bit destination address, the key of the map store.
type MapKey Address

func (k MapKey) String() string { return Address(k).String() }

// MapValue is the forwarding value derived for a MapKey: the locator to
// encapsulate with, plus the route attributes the installer needs.
type MapValue struct {
	Loc       Locator
	IfIndex   int
	CsumMode  ChecksumMode
	IdentType IdentType
	HookType  HookType
}

// RTPROTILA is the reserved route "protocol" value used to tag every
// route this daemon installs, so that a restart can find and purge only
// its own routes (see route.Installer.Start). It mirrors the historical
// RTPROT_IDLOCD reservation in the kernel ILA implementation this spec
// descends from.
const RTPROTILA = 18
