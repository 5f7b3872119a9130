package main

import (
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"blendcl/internal/blend"
	"blendcl/internal/compute"
)

func (a *app) devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List compute platforms and their devices",
		Long: `List every platform the selected backend reports, with each device's
capabilities. The PLATFORM column is the index the blend command expects.`,
		Args: noArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			driver, err := newDriver(a.cfg.Backend)
			if err != nil {
				return err
			}
			inventory, err := compute.NewCatalog(driver).Discover()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(a.stdout)
			table.SetHeader([]string{"PLATFORM", "NAME", "DEVICE", "NAME", "UNITS", "MAX GROUP", "MEMORY", "IMAGES"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetAutoFormatHeaders(false)
			table.SetBorder(false)
			table.SetHeaderLine(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			table.AppendBulk(deviceRows(inventory))
			table.Render()
			return nil
		},
	}
}

func deviceRows(inventory []compute.Inventory) [][]string {
	var rows [][]string
	for _, inv := range inventory {
		p := inv.Platform
		if len(inv.Devices) == 0 {
			rows = append(rows, []string{strconv.Itoa(p.Index), p.Name, "-", "-", "-", "-", "-", "-"})
			continue
		}
		for _, d := range inv.Devices {
			rows = append(rows, []string{
				strconv.Itoa(p.Index),
				p.Name,
				strconv.Itoa(d.Index),
				d.Name,
				strconv.Itoa(d.MaxComputeUnits),
				strconv.Itoa(d.MaxWorkGroupSize),
				humanize.IBytes(uint64(d.GlobalMemSize)),
				strconv.FormatBool(d.ImageSupport),
			})
		}
	}
	return rows
}

func (a *app) modesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "modes",
		Short: "List the supported blend modes",
		Args:  noArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			table := tablewriter.NewWriter(a.stdout)
			table.SetHeader([]string{"MODE", "KERNEL"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetBorder(false)
			table.SetHeaderLine(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			for _, m := range blend.Modes() {
				table.Append([]string{m.String(), m.KernelName()})
			}
			table.Render()
			return nil
		},
	}
}
