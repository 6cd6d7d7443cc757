package seed

// File is the root of a seed file:
//
//	users:
//	  - key: "123456789"
//	    username: ann
//	    links:
//	      - https://play.google.com/store/apps/details?id=com.example
//	    proxy_type: socks5
//	    proxies:
//	      - 10.0.0.1:1080:ann:${PROXY_PASSWORD}
//	    schedules: ["09:30", "18:00"]
type File struct {
	Users []User `yaml:"users"`
}

// User seeds one user. Key is the messaging identity (Telegram chat id).
type User struct {
	Key       string   `yaml:"key"`
	Username  string   `yaml:"username"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	Links     []string `yaml:"links"`
	ProxyType string   `yaml:"proxy_type"` // applies to proxy lines without a scheme
	Proxies   []string `yaml:"proxies"`
	Schedules []string `yaml:"schedules"`
}
