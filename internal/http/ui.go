package http

import nethttp "net/http"

func runMonitorPageHandler(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.URL.Path != "/" {
		nethttp.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(nethttp.StatusOK)
	_, _ = w.Write([]byte(runMonitorHTML))
}

func faviconHandler(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.WriteHeader(nethttp.StatusNoContent)
}

const runMonitorHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Laue Run Monitor</title>
  <style>
    :root {
      --brand: #0e5d8f;
      --brand-2: #0971b2;
      --bg: #f7f7f7;
      --paper: #fff;
      --text: #333;
      --muted: #777;
      --line: #ddd;
      --head: #f0f0f0;
      --warning: #f0ad4e;
      --info: #5bc0de;
      --success: #5cb85c;
      --danger: #d9534f;
      --secondary: #6c757d;
    }

    * { box-sizing: border-box; }

    body {
      margin: 0;
      background: var(--bg);
      color: var(--text);
      font-family: "Helvetica Neue", Helvetica, Arial, sans-serif;
      font-size: 14px;
    }

    a { color: #428bca; text-decoration: none; }
    a:hover { text-decoration: underline; }

    header {
      background: linear-gradient(to right, var(--brand) 0, var(--brand-2) 100%);
      color: #fff;
      padding: 18px 15px;
      display: flex;
      justify-content: space-between;
      align-items: center;
    }

    header .brand { font-size: 22px; font-weight: 300; }
    header .brand strong { font-weight: 600; }
    header .note { font-size: 13px; opacity: 0.88; }

    main { padding: 18px 15px 32px; }

    table { width: 100%; border-collapse: collapse; background: var(--paper); }
    th, td { border: 1px solid var(--line); padding: 6px 8px; text-align: left; vertical-align: middle; }
    th { background: var(--head); font-weight: 600; }
    tr.subjob td { background: #fafcff; font-size: 13px; }
    tr.subjob td.id-cell { padding-left: 24px; }

    .expand-btn { border: 0; background: none; cursor: pointer; font-size: 14px; width: 24px; }
    .badge { display: inline-block; padding: 2px 7px; border-radius: 4px; color: #fff; font-size: 12px; }
    .badge.warning { background: var(--warning); }
    .badge.info { background: var(--info); }
    .badge.success { background: var(--success); }
    .badge.danger { background: var(--danger); }
    .badge.secondary { background: var(--secondary); }

    .progress { display: flex; height: 14px; border-radius: 3px; overflow: hidden; background: #eee; min-width: 140px; }
    .progress div { height: 100%; }
    .progress .bg-success { background: var(--success); }
    .progress .bg-danger { background: var(--danger); }
    .progress .bg-info { background: var(--info); }
    .progress .bg-warning { background: var(--warning); }
    .progress-label { font-size: 12px; color: var(--muted); }
    .muted { color: var(--muted); }
  </style>
</head>
<body>
  <header>
    <div class="brand"><strong>Laue</strong> Run Monitor</div>
    <div class="note" id="status-note">connecting…</div>
  </header>
  <main>
    <table>
      <thead><tr id="grid-head"></tr></thead>
      <tbody id="grid-body"></tbody>
    </table>
  </main>
  <script>
    const state = { session: sessionStorage.getItem("run-monitor-session") || "", columns: [], ws: null };

    function esc(v) {
      return String(v == null ? "" : v).replace(/[&<>"']/g, c => ({"&": "&amp;", "<": "&lt;", ">": "&gt;", '"': "&quot;", "'": "&#39;"}[c]));
    }

    function link(l) {
      if (!l || !l.text) return "";
      return l.href ? '<a href="' + esc(l.href) + '">' + esc(l.text) + "</a>" : esc(l.text);
    }

    function cell(col, v) {
      const d = v.data || {};
      switch (col.field) {
        case "expand":
          return v.expandable ? '<button class="expand-btn" data-job="' + d.job_id + '">' + esc(v.expand) + "</button>" : "";
        case "job_refs":
          return (v.refs || []).map(r => link(r.table) + ": " + link(r.id)).join("<br>");
        case "job_id":
          return v.row_type === "job" ? link(v.id) : esc(d.parent_job_id);
        case "subjob_id":
          return v.row_type === "subjob" ? link(v.id) : "";
        case "status":
          return '<span class="badge ' + esc(v.status.color) + '">' + esc(v.status.text) + "</span>";
        case "submit_time":
          return esc(v.submit_time);
        case "start_time":
          return esc(v.start_time);
        case "finish_time":
          return esc(v.finish_time);
        case "total_subjobs":
          if (!v.progress) return "";
          if (v.progress.empty) return '<span class="muted">' + esc(v.progress.label) + "</span>";
          return '<div class="progress">' + (v.progress.segments || []).map(s =>
            '<div class="' + esc(s.class) + '" style="width:' + s.width_pct + '%" title="' + esc(s.title) + '"></div>').join("") +
            '</div><div class="progress-label">' + esc(v.progress.label) + "</div>";
        case "actions":
          return "";
        default:
          return esc(d[col.field]);
      }
    }

    function render(payload) {
      state.session = payload.meta.session;
      sessionStorage.setItem("run-monitor-session", state.session);
      const body = document.getElementById("grid-body");
      body.innerHTML = payload.data.map(v =>
        '<tr class="' + esc(v.row_type) + '">' + state.columns.map(c =>
          '<td class="' + (c.field === "subjob_id" ? "id-cell" : "") + '">' + cell(c, v) + "</td>").join("") + "</tr>").join("");
      document.getElementById("status-note").textContent =
        payload.meta.jobs + " jobs, updated " + new Date(payload.meta.generated_at).toLocaleTimeString();
    }

    async function loadColumns() {
      const res = await fetch("/api/v1/run-monitor/columns");
      state.columns = (await res.json()).data;
      document.getElementById("grid-head").innerHTML = state.columns.map(c => "<th>" + esc(c.header_name) + "</th>").join("");
    }

    async function loadRows() {
      const res = await fetch("/api/v1/run-monitor/rows?session=" + encodeURIComponent(state.session));
      render(await res.json());
    }

    async function toggle(jobId) {
      if (state.ws && state.ws.readyState === WebSocket.OPEN) {
        state.ws.send(JSON.stringify({ type: "toggle", job_id: jobId }));
        return;
      }
      const res = await fetch("/api/v1/run-monitor/toggle", {
        method: "POST",
        headers: { "Content-Type": "application/json" },
        body: JSON.stringify({ session: state.session, job_id: jobId })
      });
      if (res.status === 404) { state.session = ""; return loadRows(); }
      render(await res.json());
    }

    function connect() {
      const proto = location.protocol === "https:" ? "wss://" : "ws://";
      const ws = new WebSocket(proto + location.host + "/ws/run-monitor?session=" + encodeURIComponent(state.session));
      ws.onmessage = ev => {
        const msg = JSON.parse(ev.data);
        if (msg.type === "rows") render(msg.payload);
      };
      ws.onclose = () => {
        state.ws = null;
        document.getElementById("status-note").textContent = "disconnected, retrying…";
        setTimeout(connect, 3000);
      };
      state.ws = ws;
    }

    document.getElementById("grid-body").addEventListener("click", ev => {
      const btn = ev.target.closest(".expand-btn");
      if (btn) toggle(Number(btn.dataset.job));
    });

    loadColumns().then(loadRows).then(connect);
  </script>
</body>
</html>
`
