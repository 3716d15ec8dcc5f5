package config

import (
	"bytes"
	"text/template"

	cmtconfig "github.com/cometbft/cometbft/config"
	cmtos "github.com/cometbft/cometbft/libs/os"
)

// DefaultDirPerm is the default permissions used when creating directories.
const DefaultDirPerm = 0o700

var appTemplate *template.Template

const appConfigTemplate = `
#######################################################
###       pars-gov app configuration options       ###
#######################################################
[app]

# Listen address of the indexer read API; empty disables it.
indexer_listen_addr = "{{ .App.IndexerListenAddr }}"
`

func init() {
	var err error
	if appTemplate, err = template.New("appConfigTemplate").Parse(appConfigTemplate); err != nil {
		panic(err)
	}
}

// WriteConfigFile writes the comet config followed by the app section.
func WriteConfigFile(configFilePath string, config *Config) {
	cmtconfig.WriteConfigFile(configFilePath, config.Config)

	var buffer bytes.Buffer
	if err := appTemplate.Execute(&buffer, config); err != nil {
		panic(err)
	}
	existing := cmtos.MustReadFile(configFilePath)
	cmtos.MustWriteFile(configFilePath, append(existing, buffer.Bytes()...), 0o644)
}
