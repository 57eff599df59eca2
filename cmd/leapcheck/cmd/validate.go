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

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/facebook/leapsec/leaphash"
	"github.com/facebook/leapsec/leapsec"
)

var okString = color.GreenString("[ OK ]")
var warnString = color.YellowString("[WARN]")
var failString = color.RedString("[FAIL]")

func validityString(v leapsec.Validity) string {
	switch {
	case v == leapsec.GoodHash:
		return okString
	case v == leapsec.NoHash:
		return warnString
	}
	return failString
}

// validateFile checks the hash of a leap file and reports it to w
func validateFile(w io.Writer, name string) (leapsec.Validity, error) {
	f, err := os.Open(name)
	if err != nil {
		return leapsec.BadFormat, err
	}
	defer f.Close()
	v := leapsec.Validate(bufio.NewReader(f))
	fmt.Fprintf(w, "%s %s: %s\n", validityString(v), name, v)
	return v, nil
}

// signFile computes the '#h' line of a leap file
func signFile(name string) (string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s", leaphash.MarkerHash, leaphash.Compute(string(data))), nil
}

var requireHash bool

var validateCmd = &cobra.Command{
	Use:   "validate <leap-seconds.list>",
	Short: "Check the integrity hash of a leap second file",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		v, err := validateFile(os.Stdout, args[0])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		if v < leapsec.NoHash || (requireHash && v == leapsec.NoHash) {
			os.Exit(2)
		}
	},
}

var signCmd = &cobra.Command{
	Use:   "sign <leap-seconds.list>",
	Short: "Generate hash signature for leap-seconds.list",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		line, err := signFile(args[0])
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		fmt.Println(line)
	},
}

func init() {
	RootCmd.AddCommand(validateCmd)
	RootCmd.AddCommand(signCmd)
	validateCmd.Flags().BoolVar(&requireHash, "require-hash", false, "fail on files without a hash line")
}
