package config

// CommonDefaults is the schema every proxy application shares.
// Entries are declared alphabetically; [Merge] would sort them anyway.
var CommonDefaults = Schema{
	{Key: "databaseservers", Type: TypeString, ListOf: true},
	{Key: "default_registration_time", Type: TypeInteger, Default: 3600, SoftReload: true},
	{Key: "detect_loops", Type: TypeBoolean, Default: true, SoftReload: true},
	{Key: "enable_v6", Type: TypeBoolean, Default: false},
	{Key: "event_handlers", Type: TypeOpaque, SoftReload: true},
	{Key: "homedomain", Type: TypeString, ListOf: true, Normalize: true, SoftReload: true},
	{Key: "internal_to_e164", Type: TypeRegexRewrite, ListOf: true, SoftReload: true},
	{Key: "logger_enable_console", Type: TypeBoolean, Default: true, SoftReload: true},
	{Key: "logger_enable_file", Type: TypeBoolean, Default: false, SoftReload: true},
	{Key: "logger_logbasedir", Type: TypeString, SoftReload: true},
	{Key: "logger_min_level", Type: TypeSymbol, Default: Symbol("debug"), SoftReload: true},
	{Key: "max_logfile_size", Type: TypeInteger, Default: 262144, SoftReload: true},
	{Key: "max_registration_time", Type: TypeInteger, Default: 43200, SoftReload: true},
	{Key: "myhostnames", Type: TypeString, ListOf: true, Required: true, Normalize: true, SoftReload: true},
	{Key: "number_rewrites", Type: TypeRegexRewrite, ListOf: true, SoftReload: true},
	{Key: "outbound_proxy", Type: TypeSIPDefaultedURL, Normalize: true, SoftReload: true},
	{Key: "record_route", Type: TypeBoolean, Default: false, SoftReload: true},
	{Key: "record_route_url", Type: TypeSIPURL, Normalize: true, SoftReload: true},
	{Key: "sipauth_password", Type: TypeString, NoDisclosure: true, SoftReload: true},
	{Key: "sipauth_realm", Type: TypeString, SoftReload: true},
	{Key: "sipuserdb_file_filename", Type: TypeString},
	{Key: "stateless_challenges", Type: TypeBoolean, Default: false, SoftReload: true},
	{Key: "tcp_port", Type: TypeInteger, Default: 5060},
	{Key: "timer_t1_ms", Type: TypeInteger, Default: 500, SoftReload: true},
	{Key: "tls_port", Type: TypeInteger, Default: 5061},
	{Key: "udp_port", Type: TypeInteger, Default: 5060},
	{Key: "userdb_modules", Type: TypeSymbol, ListOf: true, Default: []any{Symbol("sipuserdb_file")}, SoftReload: true},
}

// ApplicationDefaults holds the per-application schema overlays,
// merged over [CommonDefaults] by the registry.
var ApplicationDefaults = map[App]Schema{
	AppIncomingProxy: {
		{Key: "internal_registrar", Type: TypeBoolean, Default: true, SoftReload: true},
		{Key: "record_route", Type: TypeBoolean, Default: true, SoftReload: true},
	},
	AppOutgoingProxy: {
		{Key: "sipproxy", Type: TypeSIPDefaultedURL, Required: true, Normalize: true, SoftReload: true},
	},
	AppPstnProxy: {
		{Key: "classdefs", Type: TypeRegexMatch, ListOf: true, SoftReload: true},
		{Key: "e164_to_pstn", Type: TypeRegexRewrite, ListOf: true, SoftReload: true},
		{Key: "pstngateway", Type: TypeSIPURL, Required: true, Normalize: true, SoftReload: true},
	},
	AppAppServer: {
		{Key: "appserver_call_timeout", Type: TypeInteger, Default: 40, SoftReload: true},
		{Key: "forward_url", Type: TypeSIPDefaultedURL, Normalize: true, SoftReload: true},
		{Key: "internal_forwards", Type: TypeRegexRewrite, ListOf: true, SoftReload: true},
	},
}
