// faxgw is a T.30 fax terminal and T.38 gateway built from the session
// engine in package t30, the modem orchestration in package modem, and
// the IFP relay in package t38.
//
// Usage mirrors src/appserver.go's pflag.Usage override and
// Parse/validate/os.Exit(1) shape: a config file supplies most
// settings, CLI flags override it, and exactly one mode (terminal or
// gateway) runs until SIGINT/SIGTERM or the session ends.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/xrg/gofax30/calllog"
	"github.com/xrg/gofax30/config"
	"github.com/xrg/gofax30/dwlog"
	"github.com/xrg/gofax30/gwdisco"
	"github.com/xrg/gofax30/modem"
	"github.com/xrg/gofax30/pstn"
	"github.com/xrg/gofax30/t30"
	"github.com/xrg/gofax30/t38"
)

func main() {
	var configFile = pflag.StringP("config", "c", "", "YAML configuration file.")
	var listDevices = pflag.Bool("list-devices", false, "List candidate audio and serial devices, then exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "faxgw - T.30 fax terminal and T.38 gateway\n\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		pflag.PrintDefaults()
	}

	// The override flags are defined and parsed by config.Load below.
	pflag.CommandLine.ParseErrorsWhitelist.UnknownFlags = true
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}
	if *listDevices {
		devices, err := pstn.DiscoverDevices()
		if err != nil {
			fmt.Fprintf(os.Stderr, "faxgw: %s\n", err)
			os.Exit(1)
		}
		for _, d := range devices {
			fmt.Printf("%-6s %-24s %s %s\n", d.Subsystem, d.Devnode, d.Vendor, d.Model)
		}
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "faxgw: %s\n", err)
		os.Exit(1)
	}

	log := dwlog.For("faxgw")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logWriter, err := calllog.NewWriter(cfg.CallLogDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "faxgw: opening call log: %s\n", err)
		os.Exit(1)
	}
	defer logWriter.Close()

	if cfg.AdvertiseMDNS {
		if _, err := gwdisco.Advertise(ctx, cfg.LocalIdent, cfg.GatewayPort, cfg.T38Version, cfg.ECMCapability, fmt.Sprintf("%v", cfg.SupportedModems)); err != nil {
			log.Warn("mDNS advertise failed, continuing without it", "err", err)
		}
	}

	switch cfg.Mode {
	case "terminal":
		err = runTerminal(ctx, cfg, log, logWriter)
	case "gateway":
		err = runGateway(ctx, cfg, log)
	default:
		fmt.Fprintf(os.Stderr, "faxgw: unknown mode %q (want terminal or gateway)\n", cfg.Mode)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "faxgw: %s\n", err)
		os.Exit(1)
	}
}

const framesPerBuffer = 160 // 20ms @ 8kHz

// newOrchestrator builds the modem bank. The loopback variants stand
// in for the external DSP modem implementations until real ones are
// linked behind modem.Variant; the orchestration, framing, and T.30
// layers above are exactly what a DSP-backed build would run.
func newOrchestrator() *modem.Orchestrator {
	orch := modem.NewOrchestrator()
	v21 := modem.NewLoopbackVariant(modem.FamilyV21, 0)
	v21.FlagFraming = true
	orch.Register(v21)
	for _, family := range []modem.Family{modem.FamilyV27ter, modem.FamilyV29, modem.FamilyV17} {
		orch.Register(modem.NewLoopbackVariant(family, 0))
	}
	return orch
}

func runTerminal(ctx context.Context, cfg config.Config, log dwlog.Logger, logWriter *calllog.Writer) error {
	device, err := pstn.OpenDefault(framesPerBuffer)
	if err != nil {
		return fmt.Errorf("opening audio device: %w", err)
	}
	defer device.Close()

	seize, err := pstn.OpenLineSeize(cfg.LineSeize)
	if err != nil {
		return fmt.Errorf("opening line-seize signal: %w", err)
	}
	defer seize.Close()

	sessCfg := t30.Config{
		ECMCapable:        cfg.ECMCapability,
		SupportedFamilies: cfg.ModemFamilies(),
		TransmitOnIdle:    cfg.TransmitOnIdle,
		UseTEP:            cfg.UseTEP,
		PollingEnabled:    cfg.PollingEnabled,
	}
	session := t30.NewSession(t30.RoleAnswerer, sessCfg)
	session.LocalIdent = cfg.LocalIdent
	session.SetOrchestrator(newOrchestrator())
	session.SetPhaseEHandler(func(code t30.CompletionCode, stats t30.Stats) {
		log.Info("session complete", "completion", code, "pages", stats.PagesTransferred)
		if err := logWriter.Write(stats); err != nil {
			log.Warn("call log write failed", "err", err)
		}
	})

	if err := seize.Assert(); err != nil {
		return fmt.Errorf("asserting line seize: %w", err)
	}
	defer func() {
		if err := seize.Deassert(); err != nil {
			log.Warn("line release failed", "err", err)
		}
	}()

	if err := session.Start(); err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	log.Info("terminal mode ready", "ident", cfg.LocalIdent)

	rxBuf := make([]int16, framesPerBuffer)
	txBuf := make([]int16, framesPerBuffer)
	for ctx.Err() == nil && session.Phase != t30.PhaseFinished {
		if err := device.Read(rxBuf); err != nil {
			return err
		}
		if err := session.ReceiveAudio(rxBuf); err != nil {
			return err
		}
		n, err := session.TransmitAudio(txBuf)
		if err != nil {
			return err
		}
		for i := n; i < len(txBuf); i++ {
			txBuf[i] = 0
		}
		if err := device.Write(txBuf); err != nil {
			return err
		}
	}
	return nil
}

func runGateway(ctx context.Context, cfg config.Config, log dwlog.Logger) error {
	gwCfg := t38.DefaultConfig()
	gwCfg.Version = cfg.T38Version
	gwCfg.ECMCapable = cfg.ECMCapability
	gwCfg.SupportedFamilies = cfg.ModemFamilies()
	gwCfg.TransmitOnIdle = cfg.TransmitOnIdle
	gwCfg.IndicatorRepeatCount = cfg.IndicatorRepeatCount
	gwCfg.DataEndRepeatCount = cfg.DataEndRepeatCount
	gwCfg.MsPerTxChunk = cfg.MsPerTxChunk

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.GatewayPort})
	if err != nil {
		return fmt.Errorf("listening on UDP %d: %w", cfg.GatewayPort, err)
	}
	defer conn.Close()

	var peer *net.UDPAddr
	if cfg.GatewayPeer != "" {
		peer, err = net.ResolveUDPAddr("udp", cfg.GatewayPeer)
		if err != nil {
			return fmt.Errorf("resolving gateway peer %s: %w", cfg.GatewayPeer, err)
		}
	}

	send := func(data []byte, repeatCount int) {
		if peer == nil {
			return
		}
		if repeatCount < 1 {
			repeatCount = 1
		}
		for i := 0; i < repeatCount; i++ {
			if _, err := conn.WriteToUDP(data, peer); err != nil {
				log.Warn("t38 send failed", "err", err)
				return
			}
		}
	}

	gw := t38.New(gwCfg, t38.DefaultCodec{}, send)
	bridge := t38.NewBridge(gw, newOrchestrator())
	if err := bridge.ArmReceive(modem.FamilyV21, 0); err != nil {
		return fmt.Errorf("arming V.21 receive: %w", err)
	}

	device, err := pstn.OpenDefault(framesPerBuffer)
	if err != nil {
		return fmt.Errorf("opening audio device: %w", err)
	}
	defer device.Close()

	log.Info("gateway mode ready", "port", cfg.GatewayPort, "peer", cfg.GatewayPeer)

	// IFP packets arrive asynchronously; the audio pump below owns the
	// bridge, so packet delivery is serialized onto it via a channel
	// rather than calling the single-threaded gateway from two
	// goroutines.
	packets := make(chan []byte, 64)
	go func() {
		buf := make([]byte, 2048)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				close(packets)
				return
			}
			pkt := make([]byte, n)
			copy(pkt, buf[:n])
			select {
			case packets <- pkt:
			case <-ctx.Done():
				return
			}
		}
	}()

	rxBuf := make([]int16, framesPerBuffer)
	txBuf := make([]int16, framesPerBuffer)
	for ctx.Err() == nil {
		for drained := false; !drained; {
			select {
			case pkt, ok := <-packets:
				if !ok {
					drained = true
					break
				}
				if err := gw.RxPacket(pkt); err != nil {
					log.Warn("t38 rx_packet failed", "err", err)
				}
			default:
				drained = true
			}
		}
		if err := device.Read(rxBuf); err != nil {
			return err
		}
		if err := bridge.ReceiveAudio(rxBuf); err != nil {
			return err
		}
		n, err := bridge.TransmitAudio(txBuf)
		if err != nil {
			return err
		}
		for i := n; i < len(txBuf); i++ {
			txBuf[i] = 0
		}
		if err := device.Write(txBuf); err != nil {
			return err
		}
	}
	log.Info("gateway stats", "duplicates_dropped", gw.Stats().DuplicatesDropped, "missing_data", gw.Stats().MissingData)
	return nil
}
