/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/facebook/leapsec/leapsec"
	"github.com/facebook/leapsec/leapsectz"
	"github.com/facebook/leapsec/ntp/protocol"
)

// flags
var (
	tzSource string
	tzExpire string
)

// tzToLeapFile converts the leap records of a TZif file to a leap file.
// expire overrides the expiration found in the TZif file.
func tzToLeapFile(w io.Writer, src string, expire time.Time) error {
	tab, err := leapsectz.ReadFile(src)
	if err != nil {
		return err
	}
	var exp int64
	if !expire.IsZero() {
		exp = protocol.Seconds(expire)
	}
	if exp == 0 && tab.Expires == 0 {
		return fmt.Errorf("%s carries no expiration, use --expire", src)
	}
	return leapsectz.WriteLeapFile(w, tab, protocol.Seconds(time.Now()), exp)
}

// leapFileToTZ writes the entries of a leap file as TZif to dst
func leapFileToTZ(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	t := leapsec.NewTable()
	if err := leapsec.Load(t, bufio.NewReader(f)); err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := leapsectz.Encode(out, leapsectz.FromEntries(t.Entries(), t.Expiration())); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

var tzCmd = &cobra.Command{
	Use:   "tz",
	Short: "Print the leap seconds of the timezone database as leap-seconds.list",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		var expire time.Time
		if tzExpire != "" {
			var err error
			if expire, err = time.Parse(dateFormat, tzExpire); err != nil {
				fmt.Println(err)
				os.Exit(1)
			}
		}
		if err := tzToLeapFile(os.Stdout, tzSource, expire); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

var tzifCmd = &cobra.Command{
	Use:   "tzif <leap-seconds.list> <dstfile>",
	Short: "Write the leap seconds of a leap file as a TZif zone file",
	Args:  cobra.ExactArgs(2),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := leapFileToTZ(args[0], args[1]); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

func init() {
	RootCmd.AddCommand(tzCmd)
	tzCmd.Flags().StringVarP(&tzSource, "src", "s", leapsectz.DefaultFile, "TZif file to read leap seconds from")
	tzCmd.Flags().StringVar(&tzExpire, "expire", "", "expiration date of the output, YYYY-MM-DD")

	RootCmd.AddCommand(tzifCmd)
}
