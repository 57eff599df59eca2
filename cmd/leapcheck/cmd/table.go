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
	"fmt"
	"io"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/leapsec/leapsec"
	"github.com/facebook/leapsec/ntp/protocol"
)

const dateFormat = "2006-01-02"

// flags
var (
	buildYear    int
	rawDump      bool
	queryAt      string
	electric     bool
	expiresWarn  int
	expiresAtArg string
)

// loadTable loads a leap file into a fresh Leapsec
func loadTable(name string, buildYear int) (*leapsec.Leapsec, error) {
	l := leapsec.New()
	if buildYear > 0 {
		if err := l.SetBuildLimit(protocol.Seconds(time.Date(buildYear, time.January, 1, 0, 0, 0, 0, time.UTC))); err != nil {
			return nil, err
		}
	}
	if _, err := l.LoadFile(name, nil, true, verbose); err != nil {
		return nil, err
	}
	return l, nil
}

func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return time.Parse(time.RFC3339, s)
}

// dumpTable prints the table as a table
func dumpTable(w io.Writer, t *leapsec.Table) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"transition", "announced", "offset", "kind"})
	entries := t.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		kind := "file"
		if e.Dynamic {
			kind = "dynamic"
		}
		table.Append([]string{
			e.Time().Format(dateFormat),
			protocol.ToTime(e.Transition - int64(e.Schedule)).Format(dateFormat),
			fmt.Sprintf("%d", e.Offset),
			kind,
		})
	}
	table.Render()
	sig := t.Signature()
	fmt.Fprintf(w, "base offset %d, expires %s, validity: %s\n",
		t.Base(), protocol.ToTime(sig.Expiration).Format(dateFormat), t.Validity())
}

// query evaluates the leap state of a file at the given time
func query(name string, at time.Time, electric bool) (leapsec.Result, error) {
	l, err := loadTable(name, 0)
	if err != nil {
		return leapsec.Result{}, err
	}
	if electric {
		l.Electric(leapsec.ElectricOn)
	}
	sec, _ := protocol.Time(at)
	res, _ := l.Query(sec)
	return res, nil
}

func printResult(w io.Writer, at time.Time, res leapsec.Result) {
	fmt.Fprintf(w, "at:        %s\n", at.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "tai:       %d\n", res.TAIOffs)
	fmt.Fprintf(w, "proximity: %s\n", res.Proximity)
	fmt.Fprintf(w, "indicator: %s\n", res.LeapIndicator())
	if res.TAIDiff != 0 {
		fmt.Fprintf(w, "leap:      %+d at %s, due in %s\n",
			res.TAIDiff, protocol.ToTime(res.TTime).Format(time.RFC3339), time.Duration(res.DDist)*time.Second)
	}
	if res.Dynamic {
		fmt.Fprintln(w, "learned at runtime")
	}
}

// expiresIn returns the days the file remains valid at the given time
func expiresIn(name string, at time.Time) (int32, *leapsec.Leapsec, error) {
	l, err := loadTable(name, 0)
	if err != nil {
		return 0, nil, err
	}
	sec, _ := protocol.Time(at)
	return l.DaysToLive(sec), l, nil
}

var dumpCmd = &cobra.Command{
	Use:   "dump <leap-seconds.list>",
	Short: "Print the leap table of a leap second file",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		l, err := loadTable(args[0], buildYear)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if rawDump {
			leapsec.Dump(l.GetTable(false), log.StandardLogger())
			return
		}
		dumpTable(os.Stdout, l.GetTable(false))
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <leap-seconds.list>",
	Short: "Evaluate the leap second state at a given time",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		at, err := parseAt(queryAt)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		res, err := query(args[0], at, electric)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		printResult(os.Stdout, at, res)
		if verbose {
			spew.Dump(res)
		}
	},
}

var expiresCmd = &cobra.Command{
	Use:   "expires <leap-seconds.list>",
	Short: "Check how long a leap second file remains valid",
	Long:  "'expires' prints the days until the file expires and fails if that is less than --warn days",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		at, err := parseAt(expiresAtArg)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		days, l, err := expiresIn(args[0], at)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		expire := protocol.ToTime(l.Signature().Expiration).Format(dateFormat)
		switch {
		case days < 0:
			fmt.Printf("%s expired on %s\n", failString, expire)
			os.Exit(2)
		case int(days) < expiresWarn:
			fmt.Printf("%s expires on %s, in %d days\n", warnString, expire, days)
			os.Exit(1)
		}
		fmt.Printf("%s expires on %s, in %d days\n", okString, expire, days)
	},
}

func init() {
	RootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().IntVar(&buildYear, "build-year", 0, "only keep entries from this year on")
	dumpCmd.Flags().BoolVar(&rawDump, "raw", false, "print the table through the logger, like the daemon does")

	RootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&queryAt, "at", "", "time to evaluate, RFC3339. Defaults to now")
	queryCmd.Flags().BoolVar(&electric, "electric", false, "assume the kernel handles the leap second")

	RootCmd.AddCommand(expiresCmd)
	expiresCmd.Flags().IntVar(&expiresWarn, "warn", 28, "fail if the file expires in less than this many days")
	expiresCmd.Flags().StringVar(&expiresAtArg, "at", "", "time to check at, RFC3339. Defaults to now")
}
