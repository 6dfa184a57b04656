package generator

import "os"

// exampleScriptPath 可覆盖的参考脚本位置
const exampleScriptPath = "examples/run.sh"

// fallbackExampleScript 参考脚本的内置兜底
//
// 展示期望的脚本形态：set -e、双镜像族 OS 探测、安装后自验证。
const fallbackExampleScript = `#!/bin/bash
set -e

# Example installation script for Python 3.11
echo "Installing Python 3.11..."

# Detect OS
if [ -f /etc/os-release ]; then
    . /etc/os-release
    OS=$NAME
else
    OS=$(uname -s)
fi

# Install based on OS
if [[ "$OS" == *"Alpine"* ]]; then
    apk add --no-cache wget tar
    wget https://www.python.org/ftp/python/3.11.0/Python-3.11.0.tgz
    tar -xzf Python-3.11.0.tgz
    cd Python-3.11.0
    ./configure --enable-optimizations
    make -j$(nproc)
    make install
elif [[ "$OS" == *"Debian"* || "$OS" == *"Ubuntu"* ]]; then
    apt-get update
    apt-get install -y wget build-essential
    wget https://www.python.org/ftp/python/3.11.0/Python-3.11.0.tgz
    tar -xzf Python-3.11.0.tgz
    cd Python-3.11.0
    ./configure --enable-optimizations
    make -j$(nproc)
    make install
else
    echo "Unsupported OS: $OS"
    exit 1
fi

# Verify installation
python3.11 --version

echo "Python 3.11 installed successfully"
`

// ExampleScript 返回随生成目标一起下发的参考 run.sh
//
// 优先读取工作目录下的 examples/run.sh，缺失时使用内置兜底。
func ExampleScript() string {
	if data, err := os.ReadFile(exampleScriptPath); err == nil && len(data) > 0 {
		return string(data)
	}
	return fallbackExampleScript
}
