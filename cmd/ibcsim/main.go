// Command ibcsim runs the harness outside go test: it spins up two simulated
// chains, opens a connection and a channel through the event-driven relayer,
// and round-trips packets between them.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	tmlog "github.com/tendermint/tendermint/libs/log"

	"github.com/interop-labs/ibcsim"
	"github.com/interop-labs/ibcsim/core/types"
	"github.com/interop-labs/ibcsim/host"
	"github.com/interop-labs/ibcsim/host/mock"
	"github.com/interop-labs/ibcsim/host/tendermint"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ibcsim",
		Short: "Simulate two chains and relay packets between them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := viper.BindPFlags(cmd.Flags()); err != nil {
				return err
			}
			return run()
		},
		SilenceUsage: true,
	}

	cmd.Flags().String("backend", "tendermint", "host backend: tendermint or mock")
	cmd.Flags().Int("validators", ibcsim.DefaultValidators, "validator set size for tendermint-backed chains")
	cmd.Flags().Int("packets", 3, "number of packets to round-trip")
	cmd.Flags().Bool("verbose", false, "log relayer progress")

	return cmd
}

func run() error {
	logger := tmlog.NewTMLogger(tmlog.NewSyncWriter(os.Stdout))
	relayerLogger := tmlog.NewNopLogger()
	if viper.GetBool("verbose") {
		relayerLogger = logger
	}

	creator, err := hostCreator(viper.GetString("backend"), viper.GetInt("validators"))
	if err != nil {
		return err
	}

	coord := &ibcsim.Coordinator{CurrentTime: time.Now().UTC()}
	coord.Chains = make(map[string]*ibcsim.Chain)

	chainA, err := ibcsim.NewChain(nil, coord, "demochain1", creator("demochain1"))
	if err != nil {
		return err
	}
	chainB, err := ibcsim.NewChain(nil, coord, "demochain2", creator("demochain2"))
	if err != nil {
		return err
	}
	coord.Chains[chainA.ChainID] = chainA
	coord.Chains[chainB.ChainID] = chainB

	relayer := ibcsim.NewRelayer(chainA, chainB).WithLogger(relayerLogger)

	if err := relayer.CreateClients(nil, nil); err != nil {
		return err
	}
	clientA, clientB := relayer.ClientIDs()
	logger.Info("clients created", "client_a", clientA, "client_b", clientB)

	if err := relayer.InitConnection(ibcsim.DefaultDelayPeriod); err != nil {
		return err
	}
	if _, err := relayer.RelayPending(); err != nil {
		return err
	}
	connA, connB := relayer.ConnectionIDs()
	logger.Info("connection open", "connection_a", connA, "connection_b", connB)

	if err := relayer.InitChannel(ibcsim.MockPort, ibcsim.MockPort, types.Unordered, ibcsim.DefaultChannelVersion); err != nil {
		return err
	}
	if _, err := relayer.RelayPending(); err != nil {
		return err
	}
	chanA, chanB := relayer.ChannelIDs()
	logger.Info("channel open", "channel_a", chanA, "channel_b", chanB)

	packets := viper.GetInt("packets")
	for i := 0; i < packets; i++ {
		data := []byte(fmt.Sprintf("ping-%d", i))
		packet, err := chainA.SendPacket(ibcsim.MockPort, chanA, data, 0, 0)
		if err != nil {
			return err
		}
		if _, err := relayer.RelayPending(); err != nil {
			return err
		}
		logger.Info("packet round-trip complete", "sequence", packet.Sequence)
	}

	logger.Info("done",
		"height_a", chainA.LatestHeight(),
		"height_b", chainB.LatestHeight(),
		"packets", packets,
	)
	return nil
}

func hostCreator(backend string, validators int) (ibcsim.HostCreator, error) {
	switch backend {
	case "tendermint":
		return func(chainID string) host.HostChain {
			return tendermint.NewChain(chainID, validators)
		}, nil
	case "mock":
		return func(chainID string) host.HostChain {
			return mock.NewChain(chainID)
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
