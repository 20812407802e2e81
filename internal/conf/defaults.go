// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "AutoLabel")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "autolabel.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "autolabel.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "autolabel")
	viper.SetDefault("output.mysql.password", "autolabel")
	viper.SetDefault("output.mysql.database", "autolabel")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("storage.uploadpath", "uploads/")
	viper.SetDefault("storage.maxfilesize", 10*1024*1024)

	viper.SetDefault("classifier.endpoint", "http://localhost:5001/classify")
	viper.SetDefault("classifier.prompttemplate", "a photo of a %s")
	viper.SetDefault("classifier.timeout", 30*time.Second)
	viper.SetDefault("classifier.concurrency", 2)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8080")
}
