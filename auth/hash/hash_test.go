// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package hash

import (
	"encoding/base64"
	"testing"

	"github.com/firekit/firekit-admin-go/auth"
	"github.com/firekit/firekit-admin-go/internal"
	"github.com/google/go-cmp/cmp"
)

var signerKey = base64.RawURLEncoding.EncodeToString([]byte("key"))
var saltSeparator = base64.RawURLEncoding.EncodeToString([]byte(","))

func TestHashConfig(t *testing.T) {
	cases := []struct {
		name string
		alg  auth.UserImportHash
		want internal.HashConfig
	}{
		{
			name: "Bcrypt",
			alg:  Bcrypt{},
			want: internal.HashConfig{"hashAlgorithm": "BCRYPT"},
		},
		{
			name: "StandardScrypt",
			alg: StandardScrypt{
				BlockSize:        1,
				DerivedKeyLength: 2,
				MemoryCost:       3,
				Parallelization:  4,
			},
			want: internal.HashConfig{
				"hashAlgorithm":   "STANDARD_SCRYPT",
				"blockSize":       1,
				"dkLen":           2,
				"memoryCost":      3,
				"parallelization": 4,
			},
		},
		{
			name: "Scrypt",
			alg: Scrypt{
				Key:           []byte("key"),
				SaltSeparator: []byte(","),
				Rounds:        8,
				MemoryCost:    14,
			},
			want: internal.HashConfig{
				"hashAlgorithm": "SCRYPT",
				"signerKey":     signerKey,
				"saltSeparator": saltSeparator,
				"rounds":        8,
				"memoryCost":    14,
			},
		},
		{
			name: "HMACMD5",
			alg:  HMACMD5{Key: []byte("key")},
			want: internal.HashConfig{"hashAlgorithm": "HMAC_MD5", "signerKey": signerKey},
		},
		{
			name: "HMACSHA1",
			alg:  HMACSHA1{Key: []byte("key")},
			want: internal.HashConfig{"hashAlgorithm": "HMAC_SHA1", "signerKey": signerKey},
		},
		{
			name: "HMACSHA256",
			alg:  HMACSHA256{Key: []byte("key")},
			want: internal.HashConfig{"hashAlgorithm": "HMAC_SHA256", "signerKey": signerKey},
		},
		{
			name: "HMACSHA512",
			alg:  HMACSHA512{Key: []byte("key")},
			want: internal.HashConfig{"hashAlgorithm": "HMAC_SHA512", "signerKey": signerKey},
		},
		{
			name: "HMACSaltFirst",
			alg:  HMACSHA256{Key: []byte("key"), InputOrder: InputOrderSaltFirst},
			want: internal.HashConfig{
				"hashAlgorithm":     "HMAC_SHA256",
				"signerKey":         signerKey,
				"passwordHashOrder": "SALT_AND_PASSWORD",
			},
		},
		{
			name: "HMACPasswordFirst",
			alg:  HMACSHA512{Key: []byte("key"), InputOrder: InputOrderPasswordFirst},
			want: internal.HashConfig{
				"hashAlgorithm":     "HMAC_SHA512",
				"signerKey":         signerKey,
				"passwordHashOrder": "PASSWORD_AND_SALT",
			},
		},
		{
			name: "MD5",
			alg:  MD5{Rounds: 0},
			want: internal.HashConfig{"hashAlgorithm": "MD5", "rounds": 0},
		},
		{
			name: "MD5MaxRounds",
			alg:  MD5{Rounds: 8192},
			want: internal.HashConfig{"hashAlgorithm": "MD5", "rounds": 8192},
		},
		{
			name: "SHA1",
			alg:  SHA1{Rounds: 1},
			want: internal.HashConfig{"hashAlgorithm": "SHA1", "rounds": 1},
		},
		{
			name: "SHA256SaltFirst",
			alg:  SHA256{Rounds: 8192, InputOrder: InputOrderSaltFirst},
			want: internal.HashConfig{
				"hashAlgorithm":     "SHA256",
				"rounds":            8192,
				"passwordHashOrder": "SALT_AND_PASSWORD",
			},
		},
		{
			name: "SHA512",
			alg:  SHA512{Rounds: 100},
			want: internal.HashConfig{"hashAlgorithm": "SHA512", "rounds": 100},
		},
		{
			name: "PBKDFSHA1",
			alg:  PBKDFSHA1{Rounds: 120000},
			want: internal.HashConfig{"hashAlgorithm": "PBKDF_SHA1", "rounds": 120000},
		},
		{
			name: "PBKDF2SHA256",
			alg:  PBKDF2SHA256{Rounds: 0},
			want: internal.HashConfig{"hashAlgorithm": "PBKDF2_SHA256", "rounds": 0},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.alg.Config()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Config() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHashConfigError(t *testing.T) {
	cases := []struct {
		name string
		alg  auth.UserImportHash
	}{
		{
			name: "ScryptNoKey",
			alg:  Scrypt{Rounds: 8, MemoryCost: 14},
		},
		{
			name: "ScryptRoundsTooLow",
			alg:  Scrypt{Key: []byte("key"), Rounds: 0, MemoryCost: 14},
		},
		{
			name: "ScryptRoundsTooHigh",
			alg:  Scrypt{Key: []byte("key"), Rounds: 9, MemoryCost: 14},
		},
		{
			name: "ScryptMemoryCostTooLow",
			alg:  Scrypt{Key: []byte("key"), Rounds: 8, MemoryCost: 0},
		},
		{
			name: "ScryptMemoryCostTooHigh",
			alg:  Scrypt{Key: []byte("key"), Rounds: 8, MemoryCost: 15},
		},
		{
			name: "HMACMD5NoKey",
			alg:  HMACMD5{},
		},
		{
			name: "HMACSHA1NoKey",
			alg:  HMACSHA1{},
		},
		{
			name: "HMACSHA256NoKey",
			alg:  HMACSHA256{},
		},
		{
			name: "HMACSHA512NoKey",
			alg:  HMACSHA512{},
		},
		{
			name: "MD5RoundsTooHigh",
			alg:  MD5{Rounds: 8193},
		},
		{
			name: "SHA1RoundsTooLow",
			alg:  SHA1{Rounds: 0},
		},
		{
			name: "SHA256RoundsTooHigh",
			alg:  SHA256{Rounds: 8193},
		},
		{
			name: "SHA512RoundsTooLow",
			alg:  SHA512{Rounds: 0},
		},
		{
			name: "PBKDFSHA1RoundsTooHigh",
			alg:  PBKDFSHA1{Rounds: 120001},
		},
		{
			name: "PBKDF2SHA256RoundsNegative",
			alg:  PBKDF2SHA256{Rounds: -1},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conf, err := tc.alg.Config()
			if conf != nil || err == nil {
				t.Errorf("Config() = (%v, %v); want = (nil, error)", conf, err)
			}
		})
	}
}
