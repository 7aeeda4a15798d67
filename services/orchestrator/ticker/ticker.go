// Copyright (C) 2025 fireplex contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ticker detects public-company mentions in search queries and maps
// them to stock symbols.
package ticker

import (
	"sort"
	"strings"
	"unicode"
)

// companySymbols maps lowercase company names and common aliases to their
// primary US exchange symbol.
var companySymbols = map[string]string{
	"apple":             "AAPL",
	"microsoft":         "MSFT",
	"alphabet":          "GOOGL",
	"google":            "GOOGL",
	"amazon":            "AMZN",
	"meta":              "META",
	"facebook":          "META",
	"instagram":         "META",
	"tesla":             "TSLA",
	"nvidia":            "NVDA",
	"netflix":           "NFLX",
	"intel":             "INTC",
	"amd":               "AMD",
	"qualcomm":          "QCOM",
	"broadcom":          "AVGO",
	"oracle":            "ORCL",
	"salesforce":        "CRM",
	"adobe":             "ADBE",
	"ibm":               "IBM",
	"cisco":             "CSCO",
	"uber":              "UBER",
	"lyft":              "LYFT",
	"airbnb":            "ABNB",
	"shopify":           "SHOP",
	"paypal":            "PYPL",
	"square":            "SQ",
	"block":             "SQ",
	"coinbase":          "COIN",
	"robinhood":         "HOOD",
	"palantir":          "PLTR",
	"snowflake":         "SNOW",
	"spotify":           "SPOT",
	"zoom":              "ZM",
	"slack":             "WORK",
	"twitter":           "X",
	"snap":              "SNAP",
	"snapchat":          "SNAP",
	"pinterest":         "PINS",
	"reddit":            "RDDT",
	"disney":            "DIS",
	"walmart":           "WMT",
	"target":            "TGT",
	"costco":            "COST",
	"nike":              "NKE",
	"starbucks":         "SBUX",
	"mcdonalds":         "MCD",
	"coca-cola":         "KO",
	"coca cola":         "KO",
	"pepsi":             "PEP",
	"pepsico":           "PEP",
	"boeing":            "BA",
	"ford":              "F",
	"general motors":    "GM",
	"exxon":             "XOM",
	"chevron":           "CVX",
	"jpmorgan":          "JPM",
	"goldman sachs":     "GS",
	"morgan stanley":    "MS",
	"bank of america":   "BAC",
	"wells fargo":       "WFC",
	"visa":              "V",
	"mastercard":        "MA",
	"berkshire":         "BRK.B",
	"johnson & johnson": "JNJ",
	"pfizer":            "PFE",
	"moderna":           "MRNA",
	"unitedhealth":      "UNH",
	"verizon":           "VZ",
	"att":               "T",
	"at&t":              "T",
	"comcast":           "CMCSA",
	"dell":              "DELL",
	"hp":                "HPQ",
	"sony":              "SONY",
	"taiwan semiconductor": "TSM",
	"tsmc":              "TSM",
	"arm":               "ARM",
	"micron":            "MU",
	"texas instruments": "TXN",
	"servicenow":        "NOW",
	"workday":           "WDAY",
	"datadog":           "DDOG",
	"mongodb":           "MDB",
	"cloudflare":        "NET",
	"crowdstrike":       "CRWD",
	"okta":              "OKTA",
	"twilio":            "TWLO",
	"atlassian":         "TEAM",
	"gitlab":            "GTLB",
	"docusign":          "DOCU",
	"dropbox":           "DBX",
	"unity":             "U",
	"roblox":            "RBLX",
	"electronic arts":   "EA",
	"activision":        "ATVI",
	"take-two":          "TTWO",
	"doordash":          "DASH",
	"instacart":         "CART",
	"etsy":              "ETSY",
	"ebay":              "EBAY",
	"zillow":            "Z",
	"draftkings":        "DKNG",
	"peloton":           "PTON",
	"rivian":            "RIVN",
	"lucid":             "LCID",
	"nio":               "NIO",
	"alibaba":           "BABA",
	"baidu":             "BIDU",
	"tencent":           "TCEHY",
	"jd":                "JD",
	"samsung":           "SSNLF",
}

// namesByLength holds the map keys sorted longest first so multi-word names
// match before their substrings ("bank of america" before "america").
var namesByLength = func() []string {
	names := make([]string, 0, len(companySymbols))
	for name := range companySymbols {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}()

// Detect returns the stock symbol for a company mentioned in the query, or
// empty string when no known company appears.
//
// # Description
//
// Two detection forms, checked in order:
//
//  1. Explicit symbol: a "$" followed by 1-5 uppercase letters ($AAPL).
//  2. Company name: case-insensitive whole-word match against the known
//     company list, longest name first.
//
// Detection never fails the request; a miss simply means no ticker event.
func Detect(query string) string {
	if sym := detectExplicitSymbol(query); sym != "" {
		return sym
	}

	lower := strings.ToLower(query)
	for _, name := range namesByLength {
		if containsWord(lower, name) {
			return companySymbols[name]
		}
	}
	return ""
}

// detectExplicitSymbol finds the first $SYMBOL form in the query.
func detectExplicitSymbol(query string) string {
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			continue
		}
		j := i + 1
		for j < len(query) && j-i <= 5 && query[j] >= 'A' && query[j] <= 'Z' {
			j++
		}
		if j > i+1 && (j == len(query) || !isWordByte(query[j])) {
			return query[i+1 : j]
		}
	}
	return ""
}

// containsWord reports whether name occurs in text on word boundaries.
func containsWord(text, name string) bool {
	for start := 0; ; {
		idx := strings.Index(text[start:], name)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(name)
		beforeOK := idx == 0 || !isWordRune(rune(text[idx-1]))
		afterOK := end == len(text) || !isWordRune(rune(text[end]))
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isWordByte(b byte) bool {
	return isWordRune(rune(b))
}
