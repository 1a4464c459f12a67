// Command db is a small command-line harness over a resource store: a
// thin cobra CLI that creates or opens a store and drives
// put/get/remove/list against it.
package main

import (
	"fmt"
	"os"

	"github.com/pierrec/lz4/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gerald-lindsly/nub/pkg/blobstore"
	"github.com/gerald-lindsly/nub/pkg/compressor"
)

var (
	flagVerbose bool
	flagDups    bool
	flagConfig  string

	log = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "db STORE",
	Short: "Inspect and manipulate a nub resource store",
	Long: `db operates on a resource store's file pair, STORE.0 (the index)
and STORE.1 (the blobs). Subcommands open or create that pair and run a
single operation against it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagVerbose {
			log.SetLevel(logrus.DebugLevel)
		}
		initConfig(flagConfig)
	},
}

// newStore builds a Store using the node cache size and LZ4 level from
// the loaded configuration (or their defaults, if neither a config file
// nor flag set them).
func newStore() *blobstore.Store {
	lvl := lz4.CompressionLevel(viper.GetInt("compressionLevel"))
	cacheSize := viper.GetInt("cacheSize")
	return blobstore.NewSized(&compressor.LZ4{Level: lvl}, nil, cacheSize)
}

// openOrCreate opens store if it exists, creating it (with flagDups)
// otherwise.
func openOrCreate(store *blobstore.Store, name string) error {
	ok, err := store.Open(name)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return store.Create(name, flagDups)
}

var putCmd = &cobra.Command{
	Use:   "put STORE NAME FILE",
	Short: "Store the contents of FILE under NAME",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, key, path := args[0], args[1], args[2]
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		store := newStore()
		if err := openOrCreate(store, name); err != nil {
			return err
		}
		defer store.Close()
		if err := store.Put(key, data); err != nil {
			return err
		}
		log.WithFields(logrus.Fields{"store": name, "name": key, "bytes": len(data)}).Info("put")
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get STORE NAME",
	Short: "Print the bytes stored under NAME to stdout",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, key := args[0], args[1]
		store := newStore()
		ok, err := store.Open(name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("store %s does not exist", name)
		}
		defer store.Close()
		data, found, err := store.Get(key)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%s: not found", key)
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove STORE NAME",
	Short: "Remove NAME from STORE",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, key := args[0], args[1]
		store := newStore()
		ok, err := store.Open(name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("store %s does not exist", name)
		}
		defer store.Close()
		removed, err := store.Remove(key)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%s: not found", key)
		}
		log.WithFields(logrus.Fields{"store": name, "name": key}).Info("removed")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list STORE",
	Short: "List every name in STORE in key order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		store := newStore()
		ok, err := store.Open(name)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("store %s does not exist", name)
		}
		defer store.Close()
		fmt.Printf("%d entries\n", store.Count())
		return store.Traverse(func(key string, data []byte) error {
			fmt.Printf("%s\t%d bytes\n", key, len(data))
			return nil
		})
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default "+defaultConfigPath()+")")
	putCmd.Flags().BoolVar(&flagDups, "dups", false, "allow duplicate keys when creating a new store")
	rootCmd.AddCommand(putCmd, getCmd, removeCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
