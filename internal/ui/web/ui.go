package web

const uiHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <title>statusdash</title>
  <style>
    body { font-family: ui-sans-serif, system-ui, -apple-system, Segoe UI, Roboto, Arial; margin: 0; background:#0b1020; color:#d6e2ff; }
    .wrap { display: grid; grid-template-columns: 1fr 1fr; gap: 12px; padding: 12px; }
    .card { border: 1px solid #24304f; border-radius: 8px; padding: 12px; }
    .muted { color:#8a96b8; font-size: 12px; }
    .bar { background:#24304f; height: 8px; border-radius: 4px; }
    .bar > div { background:#2ecc71; height: 8px; border-radius: 4px; }
    .win { color:#2ecc71; } .danger { color:#e74c3c; }
    pre { font-family: ui-monospace, SFMono-Regular, Menlo, Monaco, Consolas, monospace; max-height: 60vh; overflow:auto; margin:0; }
    #login { max-width: 320px; margin: 80px auto; display:none; }
    #login input { width: 100%; margin-bottom: 8px; }
    #err { color:#e74c3c; }
  </style>
</head>
<body>
<div id="login" class="card">
  <h3 style="margin-top:0">Iniciar sesión</h3>
  <input id="email" placeholder="email"/>
  <input id="password" type="password" placeholder="password"/>
  <button onclick="login()">Entrar</button>
  <div id="err"></div>
</div>
<div id="dash" class="wrap">
  <div class="card">
    <div class="muted" id="phase"></div>
    <h2 id="balance">-</h2>
    <div>Win rate <span id="winrate">-</span></div>
    <div class="bar"><div id="winbar" style="width:0%"></div></div>
    <div>Ops <span id="ops">-</span></div>
    <div><b id="asset">-</b> <span id="confidence" class="muted"></span></div>
    <svg id="chart" width="100%" height="80" viewBox="0 0 190 100" preserveAspectRatio="none"></svg>
    <h4>Operaciones recientes</h4>
    <div id="trades"></div>
  </div>
  <div class="card">
    <h4 style="margin-top:0">Logs</h4>
    <pre id="logs"></pre>
  </div>
</div>
<script>
const $ = (id) => document.getElementById(id);
// 400/429 之类不经过驱动的错误只在本页显示
let localErr = '';

function render(vm) {
  const needLogin = vm.session.enabled && !vm.session.authenticated;
  $('login').style.display = needLogin ? 'block' : 'none';
  $('dash').style.display = needLogin ? 'none' : 'grid';
  $('err').textContent = vm.auth_error || localErr;

  $('phase').textContent = vm.phase_text || '';
  $('balance').textContent = vm.balance_text || '-';
  $('winrate').textContent = vm.win_rate_text || '-';
  $('winbar').style.width = (vm.win_rate_bar || 0) + '%';
  $('ops').textContent = vm.ops_text || '-';
  $('asset').textContent = vm.asset_text || '-';
  $('confidence').textContent = vm.confidence_text || '';

  const pts = (vm.chart || []).map((v, i) => (i * 10) + ',' + (100 - v)).join(' ');
  $('chart').innerHTML = '<polyline fill="none" stroke="#2ecc71" stroke-width="2" points="' + pts + '"/>';

  $('trades').innerHTML = '';
  for (const t of (vm.trades || [])) {
    const row = document.createElement('div');
    row.className = t.style;
    row.textContent = t.asset + '  ' + t.detail + '  ' + t.amount + '  ' + t.outcome;
    $('trades').appendChild(row);
  }

  const logs = $('logs');
  logs.textContent = (vm.logs || []).map(l => l.text).join('\n');
  if (vm.log_scroll_to_end) { logs.scrollTop = logs.scrollHeight; }
}

async function refresh() {
  try {
    const res = await fetch('/api/view');
    if (res.ok) { render(await res.json()); }
  } catch (e) {}
}

async function login() {
  localErr = '';
  $('err').textContent = '';
  const res = await fetch('/api/login', {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify({email: $('email').value, password: $('password').value}),
  });
  const body = await res.json();
  if (!res.ok) { localErr = body.message || ''; $('err').textContent = localErr; return; }
  $('password').value = '';
  refresh();
}

refresh();
setInterval(refresh, 1000);
</script>
</body>
</html>
`
