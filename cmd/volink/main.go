package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	log "github.com/sirupsen/logrus"

	"github.com/go-volink/volink"
)

var (
	connTo   string
	regFile  string
	verbose  bool
	httpAddr string
)

// Set via go build -ldflags "-X main.buildVersion=$(git describe --dirty)"
var buildVersion = "unspecified"

var rootCmd = &cobra.Command{
	Use:   "volink",
	Short: "Viessmann Optolink P300 client",
	Long: `volink talks to a Viessmann heating controller over the Optolink
serial interface using the P300 protocol.

Connection strings accept socket://host:port or tcp://host:port for a
serial-to-network bridge, or a serial device path such as /dev/ttyUSB0.`,
	Version: buildVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
			log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&connTo, "connect", "c", "", "connection string (serial device or socket://host:port)")
	rootCmd.PersistentFlags().StringVarP(&regFile, "registry", "r", "", "YAML command table (default: built-in WO1C set)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")

	rootCmd.AddCommand(listCmd, getCmd, setCmd, serveCmd)
	serveCmd.Flags().StringVarP(&httpAddr, "addr", "s", ":8080", "HTTP listen address")
}

func loadRegistry() (*volink.Registry, error) {
	if regFile == "" {
		return volink.DefaultRegistry(), nil
	}
	f, err := os.Open(regFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return volink.LoadRegistry(f)
}

func openDevice() (*volink.Device, error) {
	if connTo == "" {
		return nil, fmt.Errorf("need a connection string in -c")
	}
	reg, err := loadRegistry()
	if err != nil {
		return nil, err
	}
	t, err := volink.Connect(connTo)
	if err != nil {
		return nil, err
	}
	return volink.NewDevice(t, reg), nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the known command names",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		names := reg.Names()
		sort.Strings(names)
		for _, name := range names {
			c, _ := reg.Resolve(name)
			fmt.Printf("%-28s 0x%04x len=%-2d %s\n", c.Name, c.Addr, c.Length, c.Access)
		}
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get NAME",
	Short: "Read a parameter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()
		v, err := dev.VRead(args[0])
		if err != nil {
			return err
		}
		switch x := v.(type) {
		case []byte:
			fmt.Printf("% x\n", x)
		case []string:
			fmt.Println(strings.Join(x, ","))
		default:
			fmt.Println(x)
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set NAME VALUE",
	Short: "Write a parameter",
	Long: `Write a parameter. Numeric values are parsed as decimals, comma
separated values as bit names, anything else as an enum label.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, err := openDevice()
		if err != nil {
			return err
		}
		defer dev.Close()
		return dev.VWrite(args[0], parseValue(args[1]))
	},
}

// parseValue maps a CLI argument onto the value shapes the codecs accept.
func parseValue(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if strings.Contains(s, ",") {
		return strings.Split(s, ",")
	}
	return s
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
