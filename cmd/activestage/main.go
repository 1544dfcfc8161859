// Command activestage dials an RDP server, drives the connection sequence,
// and runs the active stage loop against the resulting stream: an example
// of wiring internal/connseq into internal/activestage end to end.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/nolan-ca/rdp-activestage/internal/activestage"
	"github.com/nolan-ca/rdp-activestage/internal/connseq"
	"github.com/nolan-ca/rdp-activestage/internal/drdynvc"
	"github.com/nolan-ca/rdp-activestage/internal/logging"
	"github.com/nolan-ca/rdp-activestage/internal/protocol/pdu"
)

func main() {
	host := flag.String("host", "", "RDP server host:port")
	domain := flag.String("domain", "", "login domain")
	user := flag.String("user", "", "login username")
	password := flag.String("password", "", "login password")
	width := flag.Int("width", 1024, "desktop width")
	height := flag.Int("height", 768, "desktop height")
	useNLA := flag.Bool("nla", true, "use Network Level Authentication")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := logging.Default()
	logger.SetLevelFromString(*logLevel)

	if *host == "" {
		fmt.Fprintln(os.Stderr, "usage: activestage -host HOST:PORT -user USER -password PASSWORD")
		os.Exit(2)
	}

	if err := run(*host, *domain, *user, *password, *width, *height, *useNLA, logger); err != nil {
		log.Fatalln(err)
	}
}

func run(host, domain, user, password string, width, height int, useNLA bool, logger *logging.Logger) error {
	protocol := pdu.NegotiationProtocolSSL
	if useNLA {
		protocol = pdu.NegotiationProtocolHybrid
	}

	cfg := connseq.InputConfig{
		Credentials: connseq.Credentials{
			Domain:   domain,
			Username: user,
			Password: password,
		},
		SecurityProtocol:  protocol,
		Width:             uint16(width),
		Height:            uint16(height),
		GlobalChannelName: "global",
		UserChannelName:   "user",
		GraphicsConfig: &connseq.GraphicsConfig{
			ThinClient: true,
			SmallCache: true,
		},
	}

	var sequence connseq.RDPClientSequence
	client, result, err := sequence.ConnectClient(context.Background(), host, cfg)
	if err != nil {
		return fmt.Errorf("connection sequence: %w", err)
	}

	rfxCodecID, _ := client.RemoteFXCodecID()

	dispatcher := drdynvc.NewDispatcher()
	dispatcher.Register(drdynvc.GraphicsPipelineChannelName, func() (drdynvc.Handler, bool) {
		return drdynvc.NewGFXHandler(nil), true
	})

	drdynvcChannelID := result.JoinedStaticChannels[drdynvc.ChannelName]

	x224 := activestage.NewX224Processor(
		dispatcher,
		channelNamesByID(result.JoinedStaticChannels),
		result.GlobalChannelID,
		drdynvcChannelID,
		result.InitiatorID,
		logger,
	)

	framebuffer := activestage.NewFramebuffer(result.DesktopSize.Width, result.DesktopSize.Height)
	fastPath := activestage.NewFastPathProcessor(framebuffer, rfxCodecID, logger)

	loop := activestage.NewLoop(client, x224, fastPath, logger)
	return loop.Run()
}

func channelNamesByID(joined map[string]uint16) map[uint16]string {
	byID := make(map[uint16]string, len(joined))
	for name, id := range joined {
		byID[id] = name
	}
	return byID
}
