package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matchmore/alps-go/pkg/model"
)

// DeviceOptions holds flags for device commands.
type DeviceOptions struct {
	*RootOptions
	Kind          string
	Name          string
	Groups        []string
	Latitude      float64
	Longitude     float64
	ProximityUUID string
	Major         int32
	Minor         int32
	MakeMain      bool
}

// NewDeviceCommand creates the device command group.
func NewDeviceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Create and list devices",
	}
	cmd.AddCommand(newDeviceCreateCommand(rootOpts))
	cmd.AddCommand(newDeviceListCommand(rootOpts))
	return cmd
}

func newDeviceCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeviceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a device",
		Long: `Register a mobile, pin or iBeacon device with the backend.

Examples:
  alps device create --kind pin --name door --lat 46.52 --lon 6.63
  alps device create --kind beacon --name shelf --uuid 2F234454-CF6D-4A0F-ADF2-F4911BA9FFA6 --major 1 --minor 2
  alps device create --kind mobile --main`,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := opts.device(cmd)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer closeSession(s, newLogger(s.Config(), os.Stderr))

			var created model.Device
			if d.Kind == model.KindPin {
				created, err = s.CreatePinDevice(cmd.Context(), d)
			} else {
				created, err = s.CreateDevice(cmd.Context(), d, opts.MakeMain)
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), opts.Format, created, func(w io.Writer) {
				formatDevice(w, created)
			})
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func (o *DeviceOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Kind, "kind", "mobile", "device kind (mobile|pin|beacon)")
	cmd.Flags().StringVar(&o.Name, "name", "", "device name")
	cmd.Flags().StringSliceVar(&o.Groups, "group", nil, "device groups")
	cmd.Flags().Float64Var(&o.Latitude, "lat", 0, "pin latitude")
	cmd.Flags().Float64Var(&o.Longitude, "lon", 0, "pin longitude")
	cmd.Flags().StringVar(&o.ProximityUUID, "uuid", "", "iBeacon proximity UUID")
	cmd.Flags().Int32Var(&o.Major, "major", 0, "iBeacon major")
	cmd.Flags().Int32Var(&o.Minor, "minor", 0, "iBeacon minor")
	cmd.Flags().BoolVar(&o.MakeMain, "main", false, "make a mobile device the main device")
}

// device builds the device description from the flags. Unset pin and
// beacon flags stay unset so validation can report them.
func (o *DeviceOptions) device(cmd *cobra.Command) (model.Device, error) {
	var d model.Device
	switch strings.ToLower(o.Kind) {
	case "mobile":
		d = model.NewMobileDevice(o.Name)
	case "pin":
		d = model.Device{Kind: model.KindPin, Name: o.Name}
		if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
			d.Location = &model.Location{Latitude: o.Latitude, Longitude: o.Longitude}
		}
	case "beacon", "ibeacon":
		d = model.Device{Kind: model.KindBeacon, Name: o.Name, ProximityUUID: o.ProximityUUID}
		if cmd.Flags().Changed("major") {
			major := o.Major
			d.Major = &major
		}
		if cmd.Flags().Changed("minor") {
			minor := o.Minor
			d.Minor = &minor
		}
	default:
		return d, fmt.Errorf("%w: unknown device kind %q", model.ErrValidation, o.Kind)
	}
	d.Group = o.Groups
	return d, d.Validate()
}

func newDeviceListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the main device and recorded pin devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer closeSession(s, newLogger(s.Config(), os.Stderr))

			var devices []model.Device
			if main, ok := s.MainDevice(); ok {
				devices = append(devices, main)
			}
			devices = append(devices, s.Pins()...)
			return printResult(cmd.OutOrStdout(), rootOpts.Format, devices, func(w io.Writer) {
				for _, d := range devices {
					formatDevice(w, d)
				}
			})
		},
	}
}
