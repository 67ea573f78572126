package onulocator

import (
	"fmt"

	"github.com/nanoncore/nano-onulocator/drivers/cli"
	"github.com/nanoncore/nano-onulocator/vendors/zte"
)

// CapabilityMatrix defines what each vendor supports
var CapabilityMatrix = map[Vendor]VendorCapabilities{
	VendorZTE: {
		PrimaryProtocol: ProtocolTelnet,
		SupportedProtocols: []Protocol{
			ProtocolTelnet,
			ProtocolSSH,
		},
		SupportsDelete: true,
	},
}

// VendorCapabilities defines what transports and operations a vendor supports
type VendorCapabilities struct {
	PrimaryProtocol    Protocol
	SupportedProtocols []Protocol
	SupportsDelete     bool
}

// NewDriver creates an OLT driver for the vendor over the given protocol
func NewDriver(vendor Vendor, protocol Protocol, config *EquipmentConfig, opts ...cli.Option) (OLTDriver, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if vendor == "" {
		vendor = VendorZTE
	}

	// Validate vendor capabilities
	caps, ok := CapabilityMatrix[vendor]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVendor, vendor)
	}

	// If protocol not specified, use primary
	if protocol == "" {
		protocol = caps.PrimaryProtocol
	}

	// Validate protocol is supported
	supported := false
	for _, p := range caps.SupportedProtocols {
		if p == protocol {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("%w: vendor %s does not support protocol %s", ErrUnsupportedVendor, vendor, protocol)
	}

	config.Vendor = vendor
	config.Protocol = protocol

	baseDriver, err := cli.NewDriver(config, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s driver: %w", protocol, err)
	}

	// Wrap with vendor-specific adapter
	switch vendor {
	case VendorZTE:
		return zte.NewAdapter(baseDriver, config), nil
	default:
		return nil, fmt.Errorf("%w: vendor adapter not implemented: %s", ErrUnsupportedVendor, vendor)
	}
}

// GetSupportedVendors returns a list of all supported vendors
func GetSupportedVendors() []Vendor {
	vendors := make([]Vendor, 0, len(CapabilityMatrix))
	for v := range CapabilityMatrix {
		vendors = append(vendors, v)
	}
	return vendors
}

// GetVendorCapabilities returns the capabilities for a vendor
func GetVendorCapabilities(vendor Vendor) (VendorCapabilities, bool) {
	caps, ok := CapabilityMatrix[vendor]
	return caps, ok
}
