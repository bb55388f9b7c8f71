/*
Copyright (C) 2025 [GrainArc]

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package Gozonal

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// 环境变量名
const (
	EnvResultDB     = "GOZONAL_RESULT_DB"
	EnvMCPAddr      = "GOZONAL_MCP_ADDR"
	EnvMCPTransport = "GOZONAL_MCP_TRANSPORT"
	EnvDefaultStats = "GOZONAL_DEFAULT_STATS"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
)

// Config 运行配置
type Config struct {
	XMLName      xml.Name `xml:"config"`
	ResultDB     string   `xml:"result_db"`
	MCPAddr      string   `xml:"mcp_addr"`
	MCPTransport string   `xml:"mcp_transport"`
	DefaultStats string   `xml:"default_stats"`
	LogLevel     string   `xml:"log_level"`
	LogFormat    string   `xml:"log_format"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MCPAddr:      ":8080",
		MCPTransport: "stdio",
		DefaultStats: strings.Join(DefaultStats, " "),
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Stats 解析默认统计量
func (c Config) Stats() []string {
	return ParseStats(c.DefaultStats)
}

// ConfigPath 用户配置目录下的 Gozonal/config.xml
func ConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("无法获取用户配置目录: %w", err)
	}
	return filepath.Join(configDir, "Gozonal", "config.xml"), nil
}

// LoadConfig 依次叠加：默认值、XML 配置文件、.env、环境变量
// xmlPath 为空时使用 ConfigPath；文件不存在不视为错误
func LoadConfig(xmlPath string, envFiles ...string) (Config, error) {
	cfg := DefaultConfig()

	if xmlPath == "" {
		p, err := ConfigPath()
		if err == nil {
			xmlPath = p
		}
	}
	if xmlPath != "" {
		if err := cfg.loadXML(xmlPath); err != nil {
			return cfg, err
		}
	}

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// godotenv 不覆盖已存在的环境变量
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("加载 %s 失败: %w", f, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadXML(path string) error {
	xmlFile, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("打开配置文件失败: %w", err)
	}
	defer xmlFile.Close()

	var fileCfg Config
	if err := xml.NewDecoder(xmlFile).Decode(&fileCfg); err != nil {
		return fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}
	c.merge(fileCfg)
	return nil
}

// merge 非空字段覆盖当前值
func (c *Config) merge(o Config) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&c.ResultDB, o.ResultDB)
	set(&c.MCPAddr, o.MCPAddr)
	set(&c.MCPTransport, o.MCPTransport)
	set(&c.DefaultStats, o.DefaultStats)
	set(&c.LogLevel, o.LogLevel)
	set(&c.LogFormat, o.LogFormat)
}

func (c *Config) applyEnv() {
	c.merge(Config{
		ResultDB:     os.Getenv(EnvResultDB),
		MCPAddr:      os.Getenv(EnvMCPAddr),
		MCPTransport: os.Getenv(EnvMCPTransport),
		DefaultStats: os.Getenv(EnvDefaultStats),
		LogLevel:     os.Getenv(EnvLogLevel),
		LogFormat:    os.Getenv(EnvLogFormat),
	})
}
