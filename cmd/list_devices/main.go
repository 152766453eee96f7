package main

import (
	"fmt"
	"log"
	"sort"

	usb "github.com/kevmo314/go-usb"

	orange "github.com/kevmo314/go-orange"
)

func main() {
	devices, err := usb.DeviceList()
	if err != nil {
		log.Fatalf("Failed to list devices: %v", err)
	}

	var nodes []*usb.Device
	for _, dev := range devices {
		if dev.Descriptor.VendorID != orange.VendorID {
			continue
		}
		nodes = append(nodes, dev)
	}

	if len(nodes) == 0 {
		fmt.Println("No eYs3D devices found.")
		fmt.Printf("(scanned %d USB devices for vendor %04x)\n", len(devices), orange.VendorID)
		return
	}

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Path < nodes[j].Path })

	fmt.Printf("Found %d eYs3D node(s):\n\n", len(nodes))
	for i, dev := range nodes {
		fmt.Printf("Node %d:\n", i+1)
		fmt.Printf("  Path: %s\n", dev.Path)
		fmt.Printf("  VID:PID: %04x:%04x\n", dev.Descriptor.VendorID, dev.Descriptor.ProductID)
		switch dev.Descriptor.ProductID {
		case orange.ProductID80363C:
			fmt.Println("  ** ORANGE 80363 color variant **")
		case orange.ProductID80363IR:
			fmt.Println("  ** ORANGE 80363 IR variant **")
		}
		if dev.SysfsStrings != nil && dev.SysfsStrings.Product != "" {
			fmt.Printf("  Product: %s\n", dev.SysfsStrings.Product)
		}
		fmt.Println()
	}

	if len(nodes) < 3 {
		fmt.Println("An ORANGE module enumerates as three consecutive nodes; fewer were found.")
		return
	}

	dev, err := orange.Open()
	if err != nil {
		fmt.Printf("(Could not open module: %v)\n", err)
		return
	}
	defer dev.Close()

	fw, err := dev.FirmwareVersion()
	if err != nil {
		fmt.Printf("(Could not read firmware version: %v)\n", err)
	} else {
		fmt.Printf("Firmware: %s\n", fw)
	}
	sn, err := dev.SerialNumber()
	if err != nil {
		fmt.Printf("(Could not read serial number: %v)\n", err)
	} else {
		fmt.Printf("Serial:   %s\n", sn)
	}
}
