package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/connectsync/internal/application"
	"github.com/jbctechsolutions/connectsync/internal/application/peer"
	"github.com/jbctechsolutions/connectsync/internal/application/ports"
	"github.com/jbctechsolutions/connectsync/internal/presentation/cli/output"
)

// DeviceInfo describes one paired device.
type DeviceInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Reachable bool   `json:"reachable"`
	Default   bool   `json:"default"`
}

// DeviceListOutput is the JSON output of the devices command.
type DeviceListOutput struct {
	Devices []DeviceInfo `json:"devices"`
	Count   int          `json:"count"`
}

// NewDevicesCmd creates the devices command.
func NewDevicesCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:     "devices",
		Short:   "List paired devices",
		Long:    `List the devices paired with the KDE Connect daemon. By default only reachable devices are shown.`,
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := requireContainer()
			if err != nil {
				return err
			}
			devices, err := listDevices(cmd.Context(), c, !all)
			if err != nil {
				return err
			}
			return renderDevices(formatterFor(cmd), devices)
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include unreachable devices")

	return cmd
}

func listDevices(ctx context.Context, c *application.Container, onlyReachable bool) ([]DeviceInfo, error) {
	defaultID := c.Config().DefaultDevice
	var devices []DeviceInfo

	err := c.WithBus(ctx, func(conn ports.BusConnection) error {
		ids, err := peer.NewDaemon(conn).Devices(ctx, onlyReachable, true)
		if err != nil {
			return err
		}
		for _, id := range ids {
			dev := peer.NewDevice(conn, id)
			info := DeviceInfo{ID: id, Name: id, Default: id == defaultID}
			if name, err := dev.Name(ctx); err == nil && name != "" {
				info.Name = name
			}
			if ok, err := dev.Reachable(ctx); err == nil {
				info.Reachable = ok
			}
			devices = append(devices, info)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

func renderDevices(formatter *output.Formatter, devices []DeviceInfo) error {
	if formatter.Format() == output.FormatJSON {
		return formatter.JSON(DeviceListOutput{Devices: devices, Count: len(devices)})
	}

	if len(devices) == 0 {
		formatter.Info("No devices found")
		formatter.Println("")
		formatter.Println("Pair a phone in KDE Connect, then run 'connectsync devices --all'.")
		return nil
	}

	tableData := output.TableData{
		Columns: []output.TableColumn{
			{Header: "ID", Width: 20, Align: output.AlignLeft},
			{Header: "NAME", Width: 20, Align: output.AlignLeft},
			{Header: "REACHABLE", Width: 9, Align: output.AlignLeft},
			{Header: "DEFAULT", Width: 7, Align: output.AlignLeft},
		},
		Rows: make([][]string, 0, len(devices)),
	}
	for _, d := range devices {
		def := ""
		if d.Default {
			def = "*"
		}
		tableData.Rows = append(tableData.Rows, []string{d.ID, d.Name, strconv.FormatBool(d.Reachable), def})
	}

	if err := formatter.Table(tableData); err != nil {
		return err
	}
	formatter.Println("")
	formatter.Println("%s", formatter.Dim(fmt.Sprintf("Total: %d device(s)", len(devices))))
	return nil
}
